package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"

	"newsdesk/apperr"
	"newsdesk/logger"
	"newsdesk/types"
)

// Notification templates
const (
	TemplateRightOfReply = "right_of_reply"
	TemplatePullBack     = "pull_back"
	TemplateEscalation   = "escalation"
	TemplateCorrection   = "correction"
)

var templates = map[string]struct{ subject, body *template.Template }{
	TemplateRightOfReply: {
		subject: template.Must(template.New("s").Parse(`Request for comment: {{.headline}}`)),
		body: template.Must(template.New("b").Parse(`Dear {{.entity}},

We are preparing a story, "{{.headline}}", that concerns you. We would like to include your response.
Please reply before {{.deadline}}.

{{.summary}}
`)),
	},
	TemplatePullBack: {
		subject: template.Must(template.New("s").Parse(`Pulled back before publication: {{.headline}}`)),
		body: template.Must(template.New("b").Parse(`{{.editor}} pulled back "{{.headline}}" for revision.
Reason: {{.reason}}
`)),
	},
	TemplateEscalation: {
		subject: template.Must(template.New("s").Parse(`Escalated for senior review: {{.headline}}`)),
		body: template.Must(template.New("b").Parse(`"{{.headline}}" needs a senior editor.
Reason: {{.reason}}
`)),
	},
	TemplateCorrection: {
		subject: template.Must(template.New("s").Parse(`Correction issued: {{.headline}}`)),
		body: template.Must(template.New("b").Parse(`A correction was appended to "{{.headline}}" by {{.editor}}.
{{.correction}}
`)),
	},
}

// Notifier delivers editorial notifications. The returned status is recorded on right-of-reply requests.
type Notifier interface {
	Send(ctx context.Context, to, template string, vars map[string]string) (types.DeliveryStatus, error)
}

func render(name string, vars map[string]string) (string, string, error) {
	tpl, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown notification template %q", name)
	}
	var subject, body bytes.Buffer
	if err := tpl.subject.Execute(&subject, vars); err != nil {
		return "", "", err
	}
	if err := tpl.body.Execute(&body, vars); err != nil {
		return "", "", err
	}
	return subject.String(), body.String(), nil
}

// MailNotifier sends notifications through the SendGrid v3 mail send API.
type MailNotifier struct {
	baseURL    string
	apiKey     string
	from       string
	httpClient *http.Client
	log        *logger.Logger
}

func NewMailNotifier(baseURL, apiKey, from string, log *logger.Logger) *MailNotifier {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.sendgrid.com"
	}
	return &MailNotifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		from:       from,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With("client", "MailNotifier"),
	}
}

type emailAddress struct {
	Email string `json:"email"`
}

type mailSendRequest struct {
	Personalizations []struct {
		To []emailAddress `json:"to"`
	} `json:"personalizations"`
	From    emailAddress  `json:"from"`
	Subject string        `json:"subject"`
	Content []mailContent `json:"content"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (m *MailNotifier) Send(ctx context.Context, to, tpl string, vars map[string]string) (types.DeliveryStatus, error) {
	if strings.TrimSpace(to) == "" {
		return types.DeliveryFailed, fmt.Errorf("mail: recipient required")
	}
	subject, body, err := render(tpl, vars)
	if err != nil {
		return types.DeliveryFailed, err
	}

	payload := mailSendRequest{
		From:    emailAddress{Email: m.from},
		Subject: subject,
		Content: []mailContent{{Type: "text/plain", Value: body}},
	}
	payload.Personalizations = append(payload.Personalizations, struct {
		To []emailAddress `json:"to"`
	}{To: []emailAddress{{Email: to}}})

	raw, err := json.Marshal(payload)
	if err != nil {
		return types.DeliveryFailed, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v3/mail/send", bytes.NewReader(raw))
	if err != nil {
		return types.DeliveryFailed, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return types.DeliveryFailed, apperr.Transient(apperr.CodeProviderUnavailable, "mail send: %v", err)
	}
	defer resp.Body.Close()
	if err := statusError("mail send", resp); err != nil {
		return types.DeliveryFailed, err
	}

	// SendGrid accepts with 202 and delivers asynchronously
	m.log.Info("notification queued", "template", tpl, "status", resp.StatusCode)
	return types.DeliveryQueued, nil
}

// LogNotifier only logs notifications. Used when no mail provider is configured.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("client", "LogNotifier")}
}

func (n *LogNotifier) Send(_ context.Context, to, tpl string, vars map[string]string) (types.DeliveryStatus, error) {
	subject, _, err := render(tpl, vars)
	if err != nil {
		return types.DeliveryFailed, err
	}
	n.log.Info("notification", "to_contact", to, "template", tpl, "subject", subject)
	return types.DeliveryDelivered, nil
}
