package checklist

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ParseDocument decodes and validates a candidate document. Validation covers
// structural requirements only (ids present, known answer types); content is
// taken as-is. Duplicate ids across different parents are tolerated, the
// matcher resolves them by first occurrence.
func ParseDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	if err := validate(doc); err != nil {
		return Document{}, err
	}
	return normalize(doc), nil
}

// Hash returns the content hash identifying a source document revision.
func Hash(raw []byte) string {
	sum := blake2b.Sum256(raw)
	return fmt.Sprintf("%x", sum)
}

func validate(doc Document) error {
	if strings.TrimSpace(doc.ID) == "" {
		return fmt.Errorf("document id is required")
	}
	if strings.TrimSpace(doc.Title) == "" {
		return fmt.Errorf("document title is required")
	}
	for si, section := range doc.Sections {
		if strings.TrimSpace(section.ID) == "" {
			return fmt.Errorf("section %d: id is required", si)
		}
		for ssi, subsection := range section.Subsections {
			if strings.TrimSpace(subsection.ID) == "" {
				return fmt.Errorf("section %s subsection %d: id is required", section.ID, ssi)
			}
			for gi, group := range subsection.Groups {
				if strings.TrimSpace(group.ID) == "" {
					return fmt.Errorf("subsection %s group %d: id is required", subsection.ID, gi)
				}
				for qi, question := range group.Questions {
					if strings.TrimSpace(question.ID) == "" {
						return fmt.Errorf("group %s question %d: id is required", group.ID, qi)
					}
					switch question.AnswerType {
					case "", AnswerTypeSingle, AnswerTypeMultiple:
					default:
						return fmt.Errorf("question %s: unknown answer type %q", question.ID, question.AnswerType)
					}
					for ai, answer := range question.Answers {
						if strings.TrimSpace(answer.ID) == "" {
							return fmt.Errorf("question %s answer %d: id is required", question.ID, ai)
						}
					}
				}
			}
		}
	}
	return nil
}

func normalize(doc Document) Document {
	for si := range doc.Sections {
		for ssi := range doc.Sections[si].Subsections {
			for gi := range doc.Sections[si].Subsections[ssi].Groups {
				for qi := range doc.Sections[si].Subsections[ssi].Groups[gi].Questions {
					question := &doc.Sections[si].Subsections[ssi].Groups[gi].Questions[qi]
					if question.AnswerType == "" {
						question.AnswerType = AnswerTypeSingle
					}
				}
			}
		}
	}
	return doc
}
