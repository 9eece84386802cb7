package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"trafficwaker/pkg/interfaces"
	"trafficwaker/pkg/logger"
)

// EventStore the history store being decorated
type EventStore interface {
	Record(ctx context.Context, event *interfaces.WakeEvent) error
	ListRecent(ctx context.Context, namespace string, limit int) ([]*interfaces.WakeEvent, error)
}

// FeishuNotifier sends wake/sleep notifications to Feishu (Lark).
// It wraps an EventStore so every recorded action is also announced.
type FeishuNotifier struct {
	webhookURL string
	actions    map[string]struct{}
	client     *http.Client
	next       EventStore

	wg sync.WaitGroup
}

// NewFeishuNotifier creates a notifier in front of next (may be nil).
// actions filters which event actions are sent; empty sends all.
func NewFeishuNotifier(webhookURL string, actions []string, next EventStore) *FeishuNotifier {
	set := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		set[strings.TrimSpace(a)] = struct{}{}
	}
	return &FeishuNotifier{
		webhookURL: webhookURL,
		actions:    set,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		next: next,
	}
}

// Record stores the event and sends the notification in the background
func (f *FeishuNotifier) Record(ctx context.Context, event *interfaces.WakeEvent) error {
	var err error
	if f.next != nil {
		err = f.next.Record(ctx, event)
	}

	if f.wants(event.Action) {
		snapshot := *event
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			sendCtx, cancel := context.WithTimeout(context.Background(), f.client.Timeout)
			defer cancel()
			if sendErr := f.Send(sendCtx, &snapshot); sendErr != nil {
				logger.WarnCtx(ctx, "failed to send Feishu notification: %v", sendErr)
			}
		}()
	}
	return err
}

// ListRecent delegates to the wrapped store
func (f *FeishuNotifier) ListRecent(ctx context.Context, namespace string, limit int) ([]*interfaces.WakeEvent, error) {
	if f.next == nil {
		return []*interfaces.WakeEvent{}, nil
	}
	return f.next.ListRecent(ctx, namespace, limit)
}

// Flush waits for in-flight notifications
func (f *FeishuNotifier) Flush() {
	f.wg.Wait()
}

func (f *FeishuNotifier) wants(action string) bool {
	if f.webhookURL == "" {
		return false
	}
	if len(f.actions) == 0 {
		return true
	}
	_, ok := f.actions[action]
	return ok
}

// Send posts one event card to the webhook
func (f *FeishuNotifier) Send(ctx context.Context, event *interfaces.WakeEvent) error {
	if f.webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(buildEventMessage(event))
	if err != nil {
		return fmt.Errorf("failed to marshal Feishu message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Feishu notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Feishu API returned status code: %d", resp.StatusCode)
	}

	logger.DebugCtx(ctx, "Feishu notification sent for %s %s", event.Namespace, event.Action)
	return nil
}

// buildEventMessage builds a Feishu message card for a wake/sleep event
func buildEventMessage(event *interfaces.WakeEvent) map[string]interface{} {
	title, template := "Namespace woken", "green"
	switch event.Action {
	case "sleep":
		title, template = "Namespace put to sleep", "blue"
	case "failed":
		title, template = "Wake/sleep action failed", "red"
	}

	workloads := "-"
	if len(event.Workloads) > 0 {
		workloads = strings.Join(event.Workloads, ", ")
	}

	field := func(name, value string) map[string]interface{} {
		return map[string]interface{}{
			"is_short": true,
			"text": map[string]interface{}{
				"content": fmt.Sprintf("**%s**\n%s", name, value),
				"tag":     "lark_md",
			},
		}
	}

	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"header": map[string]interface{}{
				"template": template,
				"title": map[string]interface{}{
					"content": fmt.Sprintf("%s: %s", title, event.Namespace),
					"tag":     "plain_text",
				},
			},
			"elements": []interface{}{
				map[string]interface{}{
					"tag": "div",
					"text": map[string]interface{}{
						"content": event.Reason,
						"tag":     "lark_md",
					},
				},
				map[string]interface{}{
					"tag": "hr",
				},
				map[string]interface{}{
					"tag": "div",
					"fields": []interface{}{
						field("Trigger", event.Trigger),
						field("Mode", event.Mode),
						field("Traffic", fmt.Sprintf("%.2f req/min", event.TrafficRate)),
						field("Mutations", fmt.Sprintf("%d", event.Mutations)),
					},
				},
				map[string]interface{}{
					"tag": "div",
					"text": map[string]interface{}{
						"content": fmt.Sprintf("**Workloads**: %s", workloads),
						"tag":     "lark_md",
					},
				},
				map[string]interface{}{
					"tag": "note",
					"elements": []interface{}{
						map[string]interface{}{
							"content": event.Timestamp.Format("2006-01-02 15:04:05 MST"),
							"tag":     "plain_text",
						},
					},
				},
			},
		},
	}
}
