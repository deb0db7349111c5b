package remote

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/torfstack/sideload/internal/logging"
	"google.golang.org/api/drive/v3"
)

const (
	FolderMimeType = "application/vnd.google-apps.folder"
)

// DriveClient treats Google Drive as a content pool: a file counts as uploaded
// when the drive already holds a non-trashed file with the same name, size and
// SHA-1. A match outside the destination folder is copied there server side.
type DriveClient struct {
	drv *drive.Service

	mu      sync.Mutex
	folders map[string]string
}

func NewDriveClient(drv *drive.Service) *DriveClient {
	return &DriveClient{drv: drv, folders: make(map[string]string)}
}

func (c *DriveClient) InitUpload(ctx context.Context, req Request) (Result, error) {
	sha, err := ensureSHA1(req)
	if err != nil {
		return Result{}, err
	}

	folderID, err := c.resolveFolder(ctx, req.FolderID)
	if err != nil {
		return Result{}, err
	}

	matches, err := c.findByContent(ctx, req.Name, req.Size, sha)
	if err != nil {
		return Result{}, err
	}
	if len(matches) == 0 {
		return Result{FileSHA1: sha}, nil
	}

	for _, f := range matches {
		if slices.Contains(f.Parents, folderID) {
			logging.Debugf("Drive already holds %s in folder %s as %s", req.Name, folderID, f.Id)
			return Result{Status: StatusExists, FileSHA1: sha, RemoteID: f.Id}, nil
		}
	}

	copied, err := c.drv.Files.
		Copy(matches[0].Id, &drive.File{Name: req.Name, Parents: []string{folderID}}).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return Result{}, fmt.Errorf("could not copy drive file %s into folder %s: %w", matches[0].Id, folderID, err)
	}
	return Result{Status: StatusCopied, FileSHA1: sha, RemoteID: copied.Id}, nil
}

// resolveFolder maps aliases like "root" to the real folder id so it can be
// compared against file parents.
func (c *DriveClient) resolveFolder(ctx context.Context, id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if resolved, ok := c.folders[id]; ok {
		return resolved, nil
	}

	f, err := c.drv.Files.Get(id).Fields("id, mimeType").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("could not look up destination folder '%s': %w", id, err)
	}
	if f.MimeType != FolderMimeType {
		return "", fmt.Errorf("destination '%s' is not a folder", id)
	}
	c.folders[id] = f.Id
	return f.Id, nil
}

func (c *DriveClient) findByContent(ctx context.Context, name string, size int64, sha string) ([]*drive.File, error) {
	var matches []*drive.File
	pageToken := ""
	for {
		req := c.drv.Files.List().
			Q(fmt.Sprintf("name = '%s' and trashed = false and mimeType != '%s'", escapeQuery(name), FolderMimeType)).
			Fields("nextPageToken, files(id, name, size, sha1Checksum, parents)").
			PageSize(1000).
			Context(ctx)

		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		r, err := req.Do()
		if err != nil {
			return nil, fmt.Errorf("could not search drive for '%s': %w", name, err)
		}

		for _, f := range r.Files {
			if f.Size == size && strings.EqualFold(f.Sha1Checksum, sha) {
				matches = append(matches, f)
			}
		}

		pageToken = r.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return matches, nil
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
