package discord

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/biodoia/goriftcoach/internal/analysis"
	"github.com/biodoia/goriftcoach/internal/observability"
)

// WebhookClient modifica la risposta differita di un'interazione via
// PATCH sul messaggio originale. Nessun retry: un secondo PATCH dopo
// un timeout ambiguo rischia la doppia modifica.
type WebhookClient struct {
	client *resty.Client
}

// NewWebhookClient crea il client webhook verso l'API della chat
func NewWebhookClient(baseURL string, timeout time.Duration) *WebhookClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "riftcoach/1.0")

	return &WebhookClient{client: client}
}

// Deliver esegue il PATCH del messaggio originale dell'interazione.
// L'esito è discriminato: ok, token scaduto (404) o errore transiente.
func (w *WebhookClient) Deliver(ctx context.Context, applicationID, token string, payload []byte) (analysis.DeliveryOutcome, error) {
	var outcome analysis.DeliveryOutcome
	var resultErr error

	_ = observability.ObserveWith(ctx, "chat.webhook_patch", func(ctx context.Context) (map[string]interface{}, error) {
		resp, err := w.client.R().
			SetContext(ctx).
			SetBody(payload).
			Patch(fmt.Sprintf("/webhooks/%s/%s/messages/@original", applicationID, token))
		if err != nil {
			outcome = analysis.DeliveryTransient
			resultErr = fmt.Errorf("webhook request failed: %w", err)
			return nil, resultErr
		}

		meta := map[string]interface{}{"status": resp.StatusCode()}
		switch {
		case resp.IsSuccess():
			outcome = analysis.DeliveryOK
		case resp.StatusCode() == http.StatusNotFound:
			// Token dell'interazione scaduto o messaggio rimosso
			outcome = analysis.DeliveryTokenExpired
			resultErr = fmt.Errorf("interaction token no longer valid (status %d)", resp.StatusCode())
		default:
			outcome = analysis.DeliveryTransient
			resultErr = fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), resp.String())
		}
		return meta, resultErr
	})

	return outcome, resultErr
}
