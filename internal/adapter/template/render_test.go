package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	tmpl "github.com/dealer-comms/engine/internal/adapter/template"
	"github.com/dealer-comms/engine/internal/domain"
)

func TestRenderer_Render_SubstitutesVariables(t *testing.T) {
	r := tmpl.NewRenderer()
	tpl := domain.Template{
		SubjectTemplate:  "Reminder for {{customer_name}}",
		BodyTextTemplate: "Hi {{customer_name}},\nYour vehicle is due for service.",
	}
	out := r.Render(tpl, map[string]string{"customer_name": "Jordan"})

	assert.Equal(t, "Reminder for Jordan", out.Subject)
	assert.Contains(t, out.Body, "Hi Jordan,")
	assert.Contains(t, out.HTML, "Hi Jordan,<br>\n")
}

func TestRenderer_Render_MissingVariablesRenderEmpty(t *testing.T) {
	r := tmpl.NewRenderer()
	tpl := domain.Template{SubjectTemplate: "Hello {{unknown_var}}"}
	out := r.Render(tpl, map[string]string{})
	assert.Equal(t, "Hello ", out.Subject)
}

func TestRenderer_Render_UsesHTMLTemplateWhenPresent(t *testing.T) {
	r := tmpl.NewRenderer()
	tpl := domain.Template{
		BodyTextTemplate: "plain",
		BodyHTMLTemplate: "<p>{{greeting}}</p>",
	}
	out := r.Render(tpl, map[string]string{"greeting": "hi"})
	assert.Equal(t, "<p>hi</p>", out.HTML)
}

func TestRenderer_Render_DerivesWorkOrderRef(t *testing.T) {
	r := tmpl.NewRenderer()
	tpl := domain.Template{SubjectTemplate: "Receipt{{work_order_ref}}"}
	out := r.Render(tpl, map[string]string{"work_order_number": "10234"})
	assert.Equal(t, "Receipt (Work Order #10234)", out.Subject)
}

func TestStringifyParams_ConvertsScalars(t *testing.T) {
	out := tmpl.StringifyParams(map[string]any{
		"name":  "Jordan",
		"count": float64(3),
		"flag":  true,
		"empty": nil,
	})
	assert.Equal(t, "Jordan", out["name"])
	assert.Equal(t, "3", out["count"])
	assert.Equal(t, "true", out["flag"])
	assert.Equal(t, "", out["empty"])
}
