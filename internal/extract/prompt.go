package extract

import (
	"strings"
	"text/template"
)

var promptTemplate = template.Must(template.New("extraction").Parse(`You are analyzing a German public tender (Vergabe/Ausschreibung) document. Extract every requirement, condition and action a bidder needs for a complete submission.

DOCUMENT PATH: {{.Path}}
DOCUMENT NAME: {{.Name}}

DOCUMENT CONTENT:
{{.Content}}

---

Extract ALL of the following:

1. DOCUMENTS that must be submitted
   - Anlagen, Nachweise, Formulare, Erklärungen, Bescheinigungen
   - Note whether they are marked as required (×, ⊠, x) or optional (☐)

2. REQUIREMENTS that must be met or provided
   - Certifications, qualifications, deadlines
   - Actions such as "einzureichen", "vorzulegen", "nachzuweisen"

3. CONDITIONS that change what is required
   - Clauses with "wenn", "falls", "sofern", "im Falle", "bei"
   - State the trigger and the consequence

4. CHECKBOXES
   - Checked: × ⊠ x [x] ✓ ✔
   - Unchecked: ☐ [ ] □
   - Record what checking the box means

5. SIGNATURES
   - "Unterschrift", "rechtsverbindlich", "zu unterzeichnen"
   - Qualified electronic, advanced electronic or handwritten

6. FIELDS to fill in
   - Company name, address, contact details
   - Prices, quantities, dates, reference and certificate numbers

7. ATTACHMENTS
   - Certificates, proofs, plans; note any required file format

8. DEADLINES
   - Abgabefrist, Bindefrist, document validity dates

Rules:
- Extract everything, even minor items
- Keep the original German wording in source_text
- Be specific about what exactly is required
- Flag items whose absence leads to exclusion (Ausschlusskriterium)
- Set is_required=true for mandatory items and false for optional ones
- Use a confidence between 0.0 and 1.0
- Reference related items by their exact title in requires_item and conditional_on_item
`))

type promptData struct {
	Path    string
	Name    string
	Content string
}

// BuildPrompt renders the extraction prompt for one document.
func BuildPrompt(path, name, content string) string {
	var b strings.Builder
	// The template is static and the data is plain strings.
	_ = promptTemplate.Execute(&b, promptData{Path: path, Name: name, Content: content})
	return b.String()
}
