package sharepoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/oaps-analytics/zendesk-reporting/internal/config"
	apperrors "github.com/oaps-analytics/zendesk-reporting/pkg/util"
)

const (
	defaultGraphBase = "https://graph.microsoft.com/v1.0"
	uploadTimeout    = 300 * time.Second
	lookupTimeout    = 60 * time.Second
)

// Uploader pushes report files into a SharePoint document library through
// the Microsoft Graph API using the client-credentials grant.
type Uploader struct {
	cfg    config.SharePointConfig
	logger *zap.Logger

	graphBase string
	// httpClient, when set, replaces the token-authenticated client; used
	// by tests to point at a fake Graph server.
	httpClient *http.Client
}

// Option customizes an Uploader.
type Option func(*Uploader)

// WithGraphBase overrides the Graph API root.
func WithGraphBase(base string) Option {
	return func(u *Uploader) { u.graphBase = strings.TrimSuffix(base, "/") }
}

// WithHTTPClient bypasses OAuth and uses the given client directly.
func WithHTTPClient(hc *http.Client) Option {
	return func(u *Uploader) { u.httpClient = hc }
}

// NewUploader constructs the uploader.
func NewUploader(cfg config.SharePointConfig, logger *zap.Logger, opts ...Option) *Uploader {
	u := &Uploader{cfg: cfg, logger: logger, graphBase: defaultGraphBase}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UploadBytes uploads content under the configured folder and returns the
// resulting web URL. Every failure is an upstream("sharepoint") error so the
// orchestrator can distinguish it from the notification stage.
func (u *Uploader) UploadBytes(ctx context.Context, filename string, content []byte) (string, error) {
	if missing := u.missingConfig(); len(missing) > 0 {
		err := fmt.Errorf("missing env vars: %s", strings.Join(missing, ", "))
		u.logger.Error("sharepoint config incomplete", zap.Strings("missing", missing))
		return "", apperrors.NewUpstream("sharepoint", "SharePoint configuration incomplete", err)
	}

	client := u.client(ctx)

	siteID, err := u.siteID(ctx, client)
	if err != nil {
		return "", err
	}
	driveID, err := u.driveID(ctx, client, siteID)
	if err != nil {
		return "", err
	}

	path := encodePath(u.cfg.FolderPath + "/" + filename)
	uploadURL := fmt.Sprintf("%s/drives/%s/root:/%s:/content", u.graphBase, driveID, path)
	u.logger.Info("uploading report to sharepoint",
		zap.String("filename", filename),
		zap.String("folder", u.cfg.FolderPath),
	)

	uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(uploadCtx, http.MethodPut, uploadURL, bytes.NewReader(content))
	if err != nil {
		return "", apperrors.NewUpstream("sharepoint", "SharePoint upload failed", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := client.Do(req)
	if err != nil {
		return "", apperrors.NewUpstream("sharepoint", "SharePoint upload failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		u.logger.Error("sharepoint upload rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return "", apperrors.NewUpstream("sharepoint", "SharePoint upload failed",
			fmt.Errorf("graph returned %d", resp.StatusCode))
	}

	var item struct {
		WebURL string `json:"webUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return "", apperrors.NewUpstream("sharepoint", "SharePoint upload response invalid", err)
	}
	if item.WebURL == "" {
		return "", apperrors.NewUpstream("sharepoint", "Upload succeeded but no webUrl returned", nil)
	}

	u.logger.Info("sharepoint upload succeeded", zap.String("web_url", item.WebURL))
	return item.WebURL, nil
}

func (u *Uploader) missingConfig() []string {
	var missing []string
	for _, kv := range []struct{ name, val string }{
		{"TENANT_ID", u.cfg.TenantID},
		{"CLIENT_ID", u.cfg.ClientID},
		{"CLIENT_SECRET", u.cfg.ClientSecret},
		{"SHAREPOINT_SITE_HOST", u.cfg.SiteHost},
		{"SHAREPOINT_SITE_NAME", u.cfg.SiteName},
		{"SHAREPOINT_DOC_LIB", u.cfg.DocLib},
		{"SHAREPOINT_FOLDER_PATH", u.cfg.FolderPath},
	} {
		if kv.val == "" {
			missing = append(missing, kv.name)
		}
	}
	return missing
}

func (u *Uploader) client(ctx context.Context) *http.Client {
	if u.httpClient != nil {
		return u.httpClient
	}
	cc := clientcredentials.Config{
		ClientID:     u.cfg.ClientID,
		ClientSecret: u.cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", u.cfg.TenantID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	return cc.Client(ctx)
}

func (u *Uploader) siteID(ctx context.Context, client *http.Client) (string, error) {
	lookupURL := fmt.Sprintf("%s/sites/%s:/sites/%s", u.graphBase, u.cfg.SiteHost, u.cfg.SiteName)
	var site struct {
		ID string `json:"id"`
	}
	if err := u.getJSON(ctx, client, lookupURL, &site); err != nil {
		return "", apperrors.NewUpstream("sharepoint", "SharePoint site not found", err)
	}
	return site.ID, nil
}

func (u *Uploader) driveID(ctx context.Context, client *http.Client, siteID string) (string, error) {
	var drives struct {
		Value []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"value"`
	}
	listURL := fmt.Sprintf("%s/sites/%s/drives", u.graphBase, siteID)
	if err := u.getJSON(ctx, client, listURL, &drives); err != nil {
		return "", apperrors.NewUpstream("sharepoint", "Drive list fetch failed", err)
	}
	want := strings.ToLower(strings.TrimSpace(u.cfg.DocLib))
	for _, d := range drives.Value {
		if strings.ToLower(strings.TrimSpace(d.Name)) == want {
			return d.ID, nil
		}
	}
	return "", apperrors.NewUpstream("sharepoint",
		fmt.Sprintf("Drive %q not found", u.cfg.DocLib), nil)
}

func (u *Uploader) getJSON(ctx context.Context, client *http.Client, reqURL string, out any) error {
	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(lookupCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("graph returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func encodePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
