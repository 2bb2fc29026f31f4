package prompts

import _ "embed"

//go:embed oracle/system.md
var OracleSystemPrompt string

//go:embed oracle/content.md.tmpl
var ContentTemplate string

//go:embed oracle/repair.md.tmpl
var RepairTemplate string

//go:embed oracle/revise.md.tmpl
var ReviseTemplate string
