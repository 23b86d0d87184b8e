package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/damymess/keroxio-image/model"
	"github.com/damymess/keroxio-image/utils"
	"go.uber.org/zap"
)

// AutoBGBackend calls the AutoBG.ai cloud API, which segments and composites
// in one remote call. Its contract is fail-soft: any transport failure or
// unusable response downgrades to returning the original image bytes rather
// than failing the request.
type AutoBGBackend struct {
	apiKey  string
	baseURL string
	client  *http.Client
	fetcher *Fetcher
}

func NewAutoBGBackend(apiKey, baseURL string, fetcher *Fetcher) *AutoBGBackend {
	return &AutoBGBackend{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		fetcher: fetcher,
	}
}

func (b *AutoBGBackend) Name() string { return "autobg-ai" }

func (b *AutoBGBackend) Remote() bool { return true }

// Segment is never used: AutoBG composites server-side.
func (b *AutoBGBackend) Segment(ctx context.Context, img image.Image) (*image.Gray, error) {
	return nil, fmt.Errorf("autobg backend is remote-only")
}

type autoBGRequest struct {
	Image      string `json:"image"`
	Background string `json:"background"`
}

type autoBGResponse struct {
	Image string `json:"image"`
	URL   string `json:"url"`
}

func (b *AutoBGBackend) ProcessRemote(ctx context.Context, img []byte, spec model.BackgroundSpec) ([]byte, bool, error) {
	directive := spec.Directive()
	if spec.Kind == model.BackgroundCustom {
		// Custom backdrops are blended locally; ask the API for transparency.
		directive = "transparent"
	}

	payload, err := json.Marshal(autoBGRequest{
		Image:      base64.StdEncoding.EncodeToString(img),
		Background: directive,
	})
	if err != nil {
		return img, true, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.baseURL+"/remove-background", bytes.NewReader(payload))
	if err != nil {
		return img, true, nil
	}
	req.Header.Set("Authorization", b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		utils.Logger.Error("autobg request failed", zap.Error(err))
		return img, true, nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		utils.Logger.Error("autobg returned non-2xx", zap.Int("status", resp.StatusCode))
		return img, true, nil
	}

	var result autoBGResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		utils.Logger.Error("autobg response unreadable", zap.Error(err))
		return img, true, nil
	}

	switch {
	case result.Image != "":
		decoded, err := base64.StdEncoding.DecodeString(result.Image)
		if err != nil {
			utils.Logger.Error("autobg image field not base64", zap.Error(err))
			return img, true, nil
		}
		return decoded, false, nil
	case result.URL != "":
		fetched, err := b.fetcher.Fetch(ctx, result.URL)
		if err != nil {
			utils.Logger.Error("autobg result url unreachable", zap.Error(err))
			return img, true, nil
		}
		return fetched, false, nil
	default:
		utils.Logger.Error("autobg response contained neither image nor url")
		return img, true, nil
	}
}
