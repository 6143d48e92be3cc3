package camctl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/T3-Labs/coop-cam/pkg/logger"
)

// Client fala com a API de controle da câmera (endpoint separado do stream
// de vídeo). Hoje só o toggle da lanterna é exposto.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ToggleTorch alterna a lanterna da câmera. Devolve corpo e status da câmera
// para o proxy repassar intactos ao chamador.
func (c *Client) ToggleTorch(ctx context.Context) (body []byte, status int, err error) {
	if c.baseURL == "" {
		return nil, 0, fmt.Errorf("URL de controle da câmera não configurada")
	}

	url := c.baseURL + "/v1/camera/torch_toggle"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("erro ao montar requisição de controle: %w", err)
	}
	// A câmera exige headers de um cliente de navegador
	req.Header.Set("Accept", "*/*")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Origin", c.baseURL)
	req.Header.Set("Referer", c.baseURL+"/remote")

	logger.Log.Infow("Alternando lanterna da câmera", "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("erro ao falar com a câmera: %w", err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("erro ao ler resposta da câmera: %w", err)
	}
	return body, resp.StatusCode, nil
}
