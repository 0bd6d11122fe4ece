package mcpserver

// ContentFormatContract describes the frontmatter and visibility rules that
// LLM consumers should follow when drafting posts, notes or pages.
const ContentFormatContract = `# grove Content Format Contract

Every content file is Markdown with YAML frontmatter.

## Layout

- ` + "`" + `writing/**/*.md` + "`" + `: posts (` + "`" + `destination: blog` + "`" + `) and notes (anything else).
- ` + "`" + `pages/**/*.md` + "`" + `: standalone pages, never filtered.
- The identifier of an item is its file name without ` + "`" + `.md` + "`" + `; for ` + "`" + `index.md` + "`" + ` it is the
  directory name. Identifiers are compared case-insensitively.

## Frontmatter

` + "```" + `yaml
---
title: Human-readable title     # shown everywhere; missing titles are flagged by the audit
date: 2024-05-01                # YYYY-MM-DD or RFC 3339; writing without a date is a draft
destination: blog               # "blog" makes the item a post; omit for notes
published: true                 # posts stay hidden in production until true
status: drafting                # announcing | publishing | editing | drafting | outlining | researching
private: false                  # private notes and their descendants never reach production
parent: garden                  # notes only: identifier of the parent note
tags: [go, gardening]
permalink: /custom/url/         # optional; defaults to /<identifier>/
description: One-line summary
---
` + "```" + `

## Visibility in production builds

1. Posts need ` + "`" + `published: true` + "`" + ` and a date that is not in the future.
2. Notes with ` + "`" + `private: true` + "`" + ` are removed together with every note below them.
3. A note whose ` + "`" + `parent` + "`" + ` matches no visible note is dropped and logged as
   "tree does not contain <parent>".
4. A parent chain that loops back to itself (including ` + "`" + `parent` + "`" + ` naming the note itself)
   is rejected.

Preview builds keep everything.
`
