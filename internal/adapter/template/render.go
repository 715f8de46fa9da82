package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dealer-comms/engine/internal/domain"
)

// varPattern matches {{var_name}} placeholders. Deliberately not Go's
// text/template: the rendered values come straight from job payloads and
// queue message_params, which include free-form customer names and
// addresses that the original never HTML-escapes either.
var varPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Renderer turns a Template plus a flat variable set into a GeneratedContent,
// substituting {{var}} placeholders and deriving an HTML body from the text
// body when the template carries no HTML variant.
type Renderer struct{}

// NewRenderer constructs a Renderer. It holds no state.
func NewRenderer() *Renderer { return &Renderer{} }

// Render substitutes vars into tpl's subject/body templates. A variable
// missing from vars renders as empty, matching the original's tolerance for
// partially-populated payloads.
func (r *Renderer) Render(tpl domain.Template, vars map[string]string) domain.GeneratedContent {
	vars = withWorkOrderRef(vars)

	subject := substitute(tpl.SubjectTemplate, vars)
	bodyText := substitute(tpl.BodyTextTemplate, vars)

	var bodyHTML string
	if tpl.BodyHTMLTemplate != "" {
		bodyHTML = substitute(tpl.BodyHTMLTemplate, vars)
	} else {
		bodyHTML = textToHTML(bodyText)
	}

	return domain.GeneratedContent{Subject: subject, Body: bodyText, HTML: bodyHTML}
}

func substitute(tpl string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		return vars[name]
	})
}

// textToHTML derives an HTML body from a plain-text one by turning line
// breaks into <br> tags, the same fallback the original renderer uses when
// a template has no dedicated HTML variant.
func textToHTML(text string) string {
	return strings.ReplaceAll(text, "\n", "<br>\n")
}

// withWorkOrderRef adds a work_order_ref derived variable (a suffix like
// " (Work Order #10234)") whenever a raw work_order_number
// is present, so templates can interpolate {{work_order_ref}} without every
// caller having to compute it.
func withWorkOrderRef(vars map[string]string) map[string]string {
	won, ok := vars["work_order_number"]
	if !ok || won == "" {
		return vars
	}
	if _, exists := vars["work_order_ref"]; exists {
		return vars
	}
	out := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	out["work_order_ref"] = " (Work Order #" + won + ")"
	return out
}

// StringifyParams flattens a job/queue-item params document into the flat
// string map Render expects, converting non-string scalars with their
// natural textual form.
func StringifyParams(params map[string]any) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		switch val := v.(type) {
		case string:
			out[k] = val
		case fmt.Stringer:
			out[k] = val.String()
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case int:
			out[k] = strconv.Itoa(val)
		case bool:
			out[k] = strconv.FormatBool(val)
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}
