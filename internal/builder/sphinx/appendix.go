package sphinx

import (
	"strings"
	"text/template"
)

// The appendix mirrors what the platform's sphinx extension expects: an
// html_context block plus the shared static assets. It must stay valid
// Python regardless of what the user's conf.py already defines.
const appendixSource = `

###########################################################################
#          auto-created docsforge configuration                           #
###########################################################################

# Do not edit below this line: everything here is generated for every build
# and overwritten on the next one.

if "html_context" not in globals():
    html_context = {}
html_context.update({
    "slug": {{ py .Project }},
    "name": {{ py .ProjectName }},
    "current_version": {{ py .Version }},
    "single_version": {{ py .SingleVersion }},
    "conf_py_path": {{ py .ConfPyPath }},
    "static_prefix": {{ py .StaticPrefix }},
    "production_domain": {{ py .ProductionDomain }},
    "analytics_code": {{ py .AnalyticsCode }},
    "builder": {{ py .SphinxBuilder }},
})

if "html_css_files" not in globals():
    html_css_files = []
html_css_files.extend([
    {{ py .StaticPrefix }} + "/css/badge_only.css",
    {{ py .StaticPrefix }} + "/css/docsforge-doc-embed.css",
])

if "html_js_files" not in globals():
    html_js_files = []
html_js_files.append({{ py .StaticPrefix }} + "/core/js/docsforge-doc-embed.js")
`

var appendixTemplate = template.Must(template.New("conf.py").
	Funcs(template.FuncMap{"py": pyLiteral}).
	Parse(appendixSource))

func renderAppendix(params *Params) (string, error) {
	var b strings.Builder
	if err := appendixTemplate.Execute(&b, params); err != nil {
		return "", err
	}
	return b.String(), nil
}

// pyLiteral renders a Go value as a Python literal.
func pyLiteral(v any) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "True"
		}
		return "False"
	case string:
		return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(t) + "'"
	default:
		return "''"
	}
}
