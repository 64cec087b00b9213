package drive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	folderMimeType      = "application/vnd.google-apps.folder"
	spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"
	xlsxMimeType        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Service struct {
	srv *drive.Service
}

func NewService(ctx context.Context, credentialsJSON string) (*Service, error) {
	// Parse credentials from JSON
	config, err := google.JWTConfigFromJSON(
		[]byte(credentialsJSON),
		drive.DriveReadonlyScope,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account credentials: %w", err)
	}

	// Create the Drive service on top of the JWT client
	srv, err := drive.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}

	return &Service{srv: srv}, nil
}

type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	Size         int64  `json:"size,string,omitempty"`
}

// IsSpreadsheet reports whether the file is a native Google Sheet, which has
// to be exported rather than downloaded.
func (f *File) IsSpreadsheet() bool {
	return f.MimeType == spreadsheetMimeType
}

// ListFiles returns every non-trashed file in a folder, following pagination.
func (s *Service) ListFiles(ctx context.Context, folderID string) ([]*File, error) {
	var files []*File

	// If no folder ID is provided, use "root"
	if folderID == "" {
		folderID = "root"
	}

	pageToken := ""
	for {
		call := s.srv.Files.List().
			Context(ctx).
			Q(fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(folderID))).
			Fields("nextPageToken, files(id, name, mimeType, modifiedTime, size)").
			OrderBy("name")
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		result, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve files: %w", err)
		}

		for _, f := range result.Files {
			files = append(files, &File{
				ID:           f.Id,
				Name:         f.Name,
				MimeType:     f.MimeType,
				ModifiedTime: f.ModifiedTime,
				Size:         f.Size,
			})
		}

		pageToken = result.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return files, nil
}

// DownloadFile streams a file's content to w. Google Sheets are exported as XLSX.
func (s *Service) DownloadFile(ctx context.Context, file *File, w io.Writer) error {
	var body io.ReadCloser
	if file.IsSpreadsheet() {
		resp, err := s.srv.Files.Export(file.ID, xlsxMimeType).Context(ctx).Download()
		if err != nil {
			return fmt.Errorf("unable to export %s: %w", file.Name, err)
		}
		body = resp.Body
	} else {
		resp, err := s.srv.Files.Get(file.ID).Context(ctx).Download()
		if err != nil {
			return fmt.Errorf("unable to download %s: %w", file.Name, err)
		}
		body = resp.Body
	}
	defer body.Close()

	_, err := io.Copy(w, body)
	return err
}

// FindFolderByPath resolves a slash separated folder path starting at the
// Drive root.
func (s *Service) FindFolderByPath(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "root", nil
	}

	folders := strings.Split(path, "/")
	currentID := "root"

	for _, folder := range folders {
		if folder == "" {
			continue
		}

		result, err := s.srv.Files.List().
			Context(ctx).
			Q(fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
				escapeQuery(currentID), escapeQuery(folder), folderMimeType)).
			Fields("files(id, name)").
			Do()
		if err != nil {
			return "", fmt.Errorf("error finding folder %s: %w", folder, err)
		}

		if len(result.Files) == 0 {
			return "", fmt.Errorf("folder not found: %s", folder)
		}

		currentID = result.Files[0].Id
	}

	return currentID, nil
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}
