package argusconsole

import "embed"

// TemplateFS contains the embedded HTML templates used for rendering the web console. These templates
// are organized in a directory structure that separates layouts, pages, and partial views.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the embedded script and stylesheet the console page loads.
//
//go:embed static/*
var StaticFS embed.FS
