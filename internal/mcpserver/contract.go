package mcpserver

// NoteFormatContract describes the note format the indexer understands.
const NoteFormatContract = `# Laguz Note Format

Notes are plain-text files under the vault root with the configured suffix
(` + "`" + `.md` + "`" + ` by default). Each starts with YAML front matter.

` + "```" + `markdown
---
date: 2021-06-15 09:30          # REQUIRED; notes without a parsable date are skipped
title: Morning walk             # optional; falls back to the first "# " heading
subtitle: Along the river       # optional
author: sam                     # optional; defaults to notes.default_author
tags:                           # optional; a list or a comma-separated string
  - walks
  - river
category: journal               # optional
---

Body text in Markdown.
` + "```" + `

## Dates

Accepted forms include ` + "`" + `2021-06-15` + "`" + `, ` + "`" + `2021-06-15T09:30:00+02:00` + "`" + `,
` + "`" + `06/15/2021 9:30` + "`" + ` (month first) and ` + "`" + `June 15, 2021` + "`" + `. A date without an
offset is read in notes.timezone.

## Query syntax

- words and "quoted phrases"; lower-case words also match their stems
- field:word for author, filename, title, subtitle, tag, category, description
- tagged:word for an exact tag
- +required and -excluded words or phrases
- wal* wildcards and walk~1 fuzzy matches
- begin..end date ranges, either bound optional (` + "`" + `20200101..20201231` + "`" + `)
`
