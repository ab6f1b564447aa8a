package ui

import (
	"bytes"
	"html/template"
	"io"
	"regexp"
	"sync"

	"algoshield.org/console/internal/branding"
)

// Shell renders the console entry document with the current branding.
// It implements branding.Chrome.
type Shell struct {
	mu    sync.RWMutex
	theme branding.Theme
	doc   []byte
}

var _ branding.Chrome = (*Shell)(nil)

func NewShell() *Shell {
	return &Shell{theme: branding.DefaultTheme()}
}

func (s *Shell) Apply(t branding.Theme) {
	vars := make(map[string]string, len(t.Vars))
	for k, v := range t.Vars {
		vars[k] = v
	}
	t.Vars = vars
	s.mu.Lock()
	s.theme = t
	s.mu.Unlock()
}

func (s *Shell) Theme() branding.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// SetDocument replaces the entry document (normally dist/index.html).
// nil selects the built-in document.
func (s *Shell) SetDocument(doc []byte) {
	s.mu.Lock()
	s.doc = append([]byte(nil), doc...)
	if doc == nil {
		s.doc = nil
	}
	s.mu.Unlock()
}

func (s *Shell) Render(w io.Writer) error {
	s.mu.RLock()
	doc, theme := s.doc, s.theme
	s.mu.RUnlock()

	if doc == nil {
		return fallbackDoc.Execute(w, viewOf(theme))
	}
	out, err := InjectTheme(doc, theme)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

type themeView struct {
	Title     string
	Primary   string
	Secondary string
	Header    string
	Favicon   string
}

func viewOf(t branding.Theme) themeView {
	v := themeView{
		Title:     t.Title,
		Primary:   t.Vars[branding.VarPrimary],
		Secondary: t.Vars[branding.VarSecondary],
		Header:    t.Vars[branding.VarHeaderBackground],
		Favicon:   t.FaviconURL,
	}
	if v.Title == "" {
		v.Title = branding.DefaultAppName
	}
	return v
}

const headTemplate = `{{define "head"}}<style id="algoshield-branding">:root{--color-primary:{{.Primary}};--color-secondary:{{.Secondary}};--color-header-background:{{.Header}}; }</style>{{if .Favicon}}<link rel="icon" href="{{.Favicon}}">{{end}}{{end}}`

var (
	headTmpl    = template.Must(template.New("branding").Parse(headTemplate))
	titleTmpl   = template.Must(template.New("title").Parse(`<title>{{.Title}}</title>`))
	fallbackDoc = template.Must(template.Must(template.New("doc").Parse(headTemplate)).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{template "head" .}}
</head>
<body>
<div id="app"></div>
</body>
</html>
`))

	titleRE    = regexp.MustCompile(`(?is)<title>.*?</title>`)
	brandingRE = regexp.MustCompile(`(?is)<style id="algoshield-branding">.*?</style>`)
	iconRE     = regexp.MustCompile(`(?i)<link[^>]*rel="[^"]*icon[^"]*"[^>]*>`)
	headEndRE  = regexp.MustCompile(`(?i)</head>`)
)

// InjectTheme rewrites doc so its title, branding stylesheet and favicon
// match t. Existing icon links are dropped only when t carries a favicon.
func InjectTheme(doc []byte, t branding.Theme) ([]byte, error) {
	v := viewOf(t)

	var title, head bytes.Buffer
	if err := titleTmpl.Execute(&title, v); err != nil {
		return nil, err
	}
	if err := headTmpl.ExecuteTemplate(&head, "head", v); err != nil {
		return nil, err
	}

	out := brandingRE.ReplaceAll(doc, nil)
	if v.Favicon != "" {
		out = iconRE.ReplaceAll(out, nil)
	}
	inject := head.Bytes()
	if titleRE.Match(out) {
		out = replaceFirst(titleRE, out, title.Bytes())
	} else {
		inject = append(title.Bytes(), inject...)
	}

	loc := headEndRE.FindIndex(out)
	if loc == nil {
		return append(inject, out...), nil
	}
	res := make([]byte, 0, len(out)+len(inject))
	res = append(res, out[:loc[0]]...)
	res = append(res, inject...)
	res = append(res, out[loc[0]:]...)
	return res, nil
}

func replaceFirst(re *regexp.Regexp, src, repl []byte) []byte {
	loc := re.FindIndex(src)
	if loc == nil {
		return src
	}
	out := make([]byte, 0, len(src)-(loc[1]-loc[0])+len(repl))
	out = append(out, src[:loc[0]]...)
	out = append(out, repl...)
	return append(out, src[loc[1]:]...)
}
