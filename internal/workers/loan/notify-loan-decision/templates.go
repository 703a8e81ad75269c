// internal/workers/loan/notify-loan-decision/templates.go
package notifyloandecision

import (
	"strings"
	"text/template"

	"loan-workers/internal/pipeline"
)

type templatePair struct {
	subject *template.Template
	body    *template.Template
}

var decisionTemplates = map[pipeline.RunStatus]templatePair{
	pipeline.StatusSanctioned: mustPair(
		"Your loan {{.ApplicationID}} is sanctioned",
		"Dear {{.CustomerName}}, your loan application {{.ApplicationID}} has been sanctioned."+
			"{{if .DocumentURL}} Your sanction letter is available at {{.DocumentURL}}.{{end}}",
	),
	pipeline.StatusManualReview: mustPair(
		"Your loan {{.ApplicationID}} is under review",
		"Dear {{.CustomerName}}, your loan application {{.ApplicationID}} needs a manual review. "+
			"We will contact you shortly.",
	),
	pipeline.StatusRejected: mustPair(
		"Update on your loan {{.ApplicationID}}",
		"Dear {{.CustomerName}}, we are unable to approve your loan application {{.ApplicationID}} at this time.",
	),
	pipeline.StatusFail: mustPair(
		"Update on your loan {{.ApplicationID}}",
		"Dear {{.CustomerName}}, your loan application {{.ApplicationID}} could not be approved."+
			"{{if .ErrorMessage}} Reason: {{.ErrorMessage}}{{end}}",
	),
}

func mustPair(subject, body string) templatePair {
	return templatePair{
		subject: template.Must(template.New("subject").Parse(subject)),
		body:    template.Must(template.New("body").Parse(body)),
	}
}

// render returns false for statuses that do not notify the applicant.
func render(status pipeline.RunStatus, input *Input) (message, bool, error) {
	pair, ok := decisionTemplates[status]
	if !ok {
		return message{}, false, nil
	}
	data := *input
	if strings.TrimSpace(data.CustomerName) == "" {
		data.CustomerName = "Customer"
	}

	var subject, body strings.Builder
	if err := pair.subject.Execute(&subject, data); err != nil {
		return message{}, false, err
	}
	if err := pair.body.Execute(&body, data); err != nil {
		return message{}, false, err
	}
	return message{Subject: subject.String(), Body: body.String()}, true, nil
}
