package shopify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
)

// Upload is a binary file bound for the platform file store.
type Upload struct {
	Filename string
	MimeType string
	Data     []byte
	Alt      string
}

func (u Upload) isImage() bool {
	return strings.HasPrefix(u.MimeType, "image/")
}

const stagedUploadsMutation = `
mutation StagedUploads($input: [StagedUploadInput!]!) {
  stagedUploadsCreate(input: $input) {
    stagedTargets { url resourceUrl parameters { name value } }
    userErrors { field message }
  }
}`

const fileCreateMutation = `
mutation FileCreate($files: [FileCreateInput!]!) {
  fileCreate(files: $files) {
    files { id fileStatus alt }
    userErrors { field message code }
  }
}`

type stagedTarget struct {
	URL         string `json:"url"`
	ResourceURL string `json:"resourceUrl"`
	Parameters  []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"parameters"`
}

type stagedUploadsData struct {
	StagedUploadsCreate struct {
		StagedTargets []stagedTarget `json:"stagedTargets"`
		UserErrors    []UserError    `json:"userErrors"`
	} `json:"stagedUploadsCreate"`
}

type fileCreateData struct {
	FileCreate struct {
		Files []struct {
			ID         string `json:"id"`
			FileStatus string `json:"fileStatus"`
		} `json:"files"`
		UserErrors []UserError `json:"userErrors"`
	} `json:"fileCreate"`
}

// UploadFile runs the staged-upload handshake: request a target, POST the
// bytes to it, then commit a file record. Returns the file reference id.
func (c *Client) UploadFile(ctx context.Context, up Upload) (string, error) {
	if len(up.Data) == 0 {
		return "", fmt.Errorf("upload %s: empty file", up.Filename)
	}

	resource, contentType := "FILE", "FILE"
	if up.isImage() {
		resource, contentType = "IMAGE", "IMAGE"
	}

	staged, err := AdminGraphQL[stagedUploadsData](ctx, c, stagedUploadsMutation, map[string]any{
		"input": []map[string]any{{
			"filename":   up.Filename,
			"mimeType":   up.MimeType,
			"resource":   resource,
			"httpMethod": "POST",
			"fileSize":   strconv.Itoa(len(up.Data)),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("stagedUploadsCreate: %w", err)
	}
	if err := userErrs(staged.StagedUploadsCreate.UserErrors); err != nil {
		return "", err
	}
	if len(staged.StagedUploadsCreate.StagedTargets) == 0 {
		return "", fmt.Errorf("stagedUploadsCreate: no target returned")
	}
	target := staged.StagedUploadsCreate.StagedTargets[0]

	if err := c.postStaged(ctx, target, up); err != nil {
		return "", err
	}

	created, err := AdminGraphQL[fileCreateData](ctx, c, fileCreateMutation, map[string]any{
		"files": []map[string]any{{
			"originalSource": target.ResourceURL,
			"contentType":    contentType,
			"alt":            up.Alt,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("fileCreate: %w", err)
	}
	if err := userErrs(created.FileCreate.UserErrors); err != nil {
		return "", err
	}
	if len(created.FileCreate.Files) == 0 || created.FileCreate.Files[0].ID == "" {
		return "", fmt.Errorf("fileCreate: no file returned")
	}
	return created.FileCreate.Files[0].ID, nil
}

func (c *Client) postStaged(ctx context.Context, target stagedTarget, up Upload) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range target.Parameters {
		if err := w.WriteField(p.Name, p.Value); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, up.Filename))
	h.Set("Content-Type", up.MimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(up.Data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	res, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("staged upload post: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("staged upload post: http %d: %s", res.StatusCode, truncate(string(raw), 300))
	}
	return nil
}
