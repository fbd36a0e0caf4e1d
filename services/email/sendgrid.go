package emailsvc

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"golang.org/x/sync/semaphore"

	"github.com/anquinko/academia/core"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"

	// maxConcurrentSends bounds the requests in flight, e.g. when a whole class is finalized.
	maxConcurrentSends = 8
)

type sendgridService struct {
	key         string
	from        *sgmail.Email
	subjPrefix  string
	frontendURL string
	sandbox     bool
	appName     string
	sem         *semaphore.Weighted
	logger      core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

// NewSendgridService sends through the SendGrid v3 API. Mails are validated but not delivered in test mode.
func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	return newSendgridService(conf, logger)
}

func newSendgridService(conf *core.Config, logger core.Logger) *sendgridService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		key:         conf.SendgridAPIKey,
		from:        sgmail.NewEmail(from.Name, from.Address),
		subjPrefix:  "[" + conf.AppName + "] ",
		frontendURL: conf.FrontendBaseURL,
		sandbox:     conf.TestMode,
		appName:     conf.AppName,
		sem:         semaphore.NewWeighted(maxConcurrentSends),
		logger:      logger,
	}
}

// SendMessages renders and sends every message in the background.
func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := msg.Render(svc.frontendURL); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email %q: %v", msg.TemplateName, err), err)
				return
			}
			if !msg.HasRecipients() || !msg.HasContent() {
				return
			}
			if err := svc.sem.Acquire(context.Background(), 1); err != nil {
				return
			}
			defer svc.sem.Release(1)
			svc.send(svc.build(*msg))
		}()
	}
}

// build turns a rendered message into a v3 mail; the template name is used as category.
func (svc *sendgridService) build(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	p.AddTos(sgEmails(msg.To)...)
	if len(msg.Cc) > 0 {
		p.AddCCs(sgEmails(msg.Cc)...)
	}
	if len(msg.Bcc) > 0 {
		p.AddBCCs(sgEmails(msg.Bcc)...)
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddCategories(svc.appName)
	if msg.TemplateName != "" {
		m.AddCategories(msg.TemplateName)
	}

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}

	if svc.sandbox {
		settings := sgmail.NewMailSettings()
		settings.SetSandboxMode(sgmail.NewSetting(true))
		m.SetMailSettings(settings)
	}
	return m
}

func sgEmails(addrs []mail.Address) []*sgmail.Email {
	emails := make([]*sgmail.Email, 0, len(addrs))
	for _, addr := range addrs {
		emails = append(emails, sgmail.NewEmail(addr.Name, addr.Address))
	}
	return emails
}

func (svc *sendgridService) send(m *sgmail.SGMailV3) {
	req := sendgrid.GetRequest(svc.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	switch {
	case err != nil:
		svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
	case res.StatusCode >= http.StatusBadRequest:
		svc.logger.Error(fmt.Sprintf("sending email - status: %d - body: %s", res.StatusCode, res.Body))
	}
}
