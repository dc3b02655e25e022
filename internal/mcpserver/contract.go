package mcpserver

// TemplateFormatContract describes the template catalog layout that LLM
// consumers should follow when reading or updating templates.
const TemplateFormatContract = `# Template Catalog Format

The catalog lives in a Git repository. Every change is a single commit.

## Files

- ` + "`templates/index.json`" + `: master index in the default locale.
- ` + "`templates/index.<locale>.json`" + `: one translated copy per other locale, same shape.
- ` + "`templates/<name>.json`" + `: the workflow graph of template ` + "`<name>`" + `.
- ` + "`templates/<name>-1.<mediaSubtype>`" + ` (and ` + "`-2`" + ` for compare variants): thumbnails.
- ` + "`input/`" + `, ` + "`output/`" + `: files referenced by workflow widget values.
- ` + "`scripts/i18n.json`" + `: translation memory.
- ` + "`bundles.json`" + `: bundle name to template names.

## Index shape

The index is an ordered array of categories:

` + "```" + `json
[
  {
    "moduleName": "default",
    "title": "Image",
    "type": "image",
    "templates": [
      {"name": "flux_dev", "title": "Flux Dev", "mediaType": "image", "mediaSubtype": "webp"}
    ]
  }
]
` + "```" + `

## Template metadata fields

| Field | Notes |
|-------|-------|
| title, description | Translated per locale. Changing them marks translations outdated. |
| category | Category title. Changing it moves the template. |
| tags | Translated per locale. |
| mediaType, mediaSubtype | Thumbnail media. mediaSubtype is the thumbnail extension. |
| thumbnailVariant | e.g. compareSlider, hoverDissolve. "none" removes it. |
| models, requiresCustomNodes | Lists of strings. An empty requiresCustomNodes removes it. |
| size, vram, usage, searchRank | Numbers, copied to every locale unchanged. |
| tutorialUrl, comfyuiVersion, date, openSource, io, logos | Copied as given. |

Omitted fields are left as they are.

## Rules

1. **Names** use letters, digits, ` + "`_`" + `, ` + "`-`" + ` and ` + "`.`" + `. They never change.
2. **Do not edit locale indexes directly.** Update the master entry; locales follow in the same commit.
3. **Assets** are stored under the name the workflow references. When that name is
   taken by another template it is stored as ` + "`<name>_<file>`" + ` and the workflow is
   rewritten to match. The mapping is returned as ` + "`assetMapping`" + `.
4. **Unchanged content** produces no commit; the result reports ` + "`noOp: true`" + `.
`
