package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/torfstack/sideload/internal/logging"
	"golang.org/x/oauth2"
)

var (
	authCodeTimeout = 10 * time.Minute
)

type callbackResult struct {
	code string
	err  string
}

// Login runs the browser flow unconditionally and stores the new token.
func Login(ctx context.Context, credentialsFile string, store TokenStore) error {
	if err := store.UpdateAuthToken(ctx, ""); err != nil {
		return fmt.Errorf("could not reset stored token: %w", err)
	}
	_, err := DriveService(ctx, credentialsFile, store, true)
	return err
}

func getTokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	resultCh, port, err := startOAuthCallbackServer(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not start OAuth callback server: %w", err)
	}

	redirectURL := fmt.Sprintf("http://localhost:%d", port)
	config.RedirectURL = redirectURL
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

	logging.Infof("Trying to open your browser to visit the URL to authorize this application: %s", authURL)
	openBrowser(authURL)

	code, err := waitForAuthCode(ctx, resultCh)
	if err != nil {
		return nil, fmt.Errorf("could not complete OAuth flow: %w", err)
	}

	tok, err := config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("could not exchange auth code: %w", err)
	}

	logging.Info("Login successful!")
	return tok, nil
}

// startOAuthCallbackServer listens on a random localhost port and delivers at
// most one callback result. The channel is closed once the server stops.
func startOAuthCallbackServer(ctx context.Context) (<-chan callbackResult, int, error) {
	resultCh := make(chan callbackResult, 1)

	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		close(resultCh)
		return resultCh, 0, fmt.Errorf("could not create listener: %w", err)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	mux := http.NewServeMux()
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	var once sync.Once
	deliver := func(res callbackResult) {
		once.Do(func() {
			resultCh <- res
			close(resultCh)
			go func() { _ = srv.Shutdown(context.Background()) }()
		})
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if errMsg := r.FormValue("error"); errMsg != "" {
			http.Error(w, errMsg, http.StatusBadRequest)
			deliver(callbackResult{err: errMsg})
			return
		}
		code := r.FormValue("code")
		w.WriteHeader(http.StatusOK)
		if _, errWrite := fmt.Fprintln(w, "Authorization successful! You can close this window now."); errWrite != nil {
			logging.Infof("Could not write response to client: %s", errWrite)
		}
		deliver(callbackResult{code: code})
	})

	go func() {
		if errServe := srv.Serve(listener); !errors.Is(errServe, http.ErrServerClosed) {
			logging.Error("OAuth callback server stopped", errServe)
		}
		once.Do(func() { close(resultCh) })
	}()

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	return resultCh, port, nil
}

func waitForAuthCode(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	logging.Info("Waiting for successful login... ")
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-resultCh:
		switch {
		case !ok:
			return "", fmt.Errorf("callback server stopped before receiving a code")
		case res.err != "":
			return "", fmt.Errorf("authorization failed: %s", res.err)
		case res.code == "":
			return "", fmt.Errorf("no authorization code received")
		}
		return res.code, nil
	case <-time.After(authCodeTimeout):
		return "", fmt.Errorf("timed out waiting for authorization code")
	}
}

func openBrowser(url string) {
	var err error

	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		fmt.Printf("Please open the following URL manually: %s\n", url)
	}

	if err != nil {
		fmt.Printf("Failed to open browser automatically: %v\n", err)
		fmt.Printf("Visit this URL manually: %s\n", url)
	}
}
