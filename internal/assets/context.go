package assets

import (
	"fmt"
	"strings"

	"github.com/codefionn/hyphertext/internal/consts"
	"github.com/codefionn/hyphertext/internal/store"
)

var rule = strings.Repeat("=", 60)

// BuildContext renders the uploaded-files block appended to the system
// prompt. Only ready assets are described; the result is empty when there
// are none.
func BuildContext(assets []store.Asset) string {
	var images, docs, extracted []store.Asset
	for _, a := range assets {
		if a.Status != store.AssetReady {
			continue
		}
		switch a.AssetType {
		case store.AssetImage:
			images = append(images, a)
		case store.AssetDocument:
			docs = append(docs, a)
		case store.AssetExtractedImage:
			extracted = append(extracted, a)
		}
	}
	if len(images)+len(docs)+len(extracted) == 0 {
		return ""
	}

	sections := []string{rule, "UPLOADED FILES CONTEXT", rule}

	if len(images) > 0 {
		sections = append(sections,
			"\nIMAGES AVAILABLE FOR USE IN HTML",
			"You can embed these directly using their URL in <img> tags or CSS background-image.\n",
		)
		for _, img := range images {
			sections = append(sections, imageBlock(img), "")
		}
	}

	if len(docs) > 0 {
		sections = append(sections,
			"\nDOCUMENT CONTENT",
			"Text extracted from uploaded documents. Use this content when building the page.\n",
		)
		for _, doc := range docs {
			sections = append(sections, documentBlock(doc), "")
		}
	}

	if len(extracted) > 0 {
		sections = append(sections,
			"\nIMAGES EXTRACTED FROM DOCUMENTS",
			"These images were found inside uploaded documents.\n",
		)
		for _, img := range extracted {
			lines := []string{"  File: " + img.OriginalFileName + " (from document)"}
			if img.PublicURL != "" {
				lines = append(lines, "  URL:  "+img.PublicURL)
			}
			if img.VisionDescription != "" {
				lines = append(lines, "  What it shows: "+img.VisionDescription)
			}
			if img.VisionSuggestedUse != "" {
				lines = append(lines, "  Suggested use: "+img.VisionSuggestedUse)
			}
			sections = append(sections, strings.Join(lines, "\n"), "")
		}
	}

	sections = append(sections, rule)
	return strings.Join(sections, "\n")
}

func imageBlock(img store.Asset) string {
	lines := []string{"  File: " + img.OriginalFileName}
	if img.PublicURL != "" {
		lines = append(lines, "  URL:  "+img.PublicURL)
	}
	if img.VisionDescription != "" {
		lines = append(lines, "  What it shows: "+img.VisionDescription)
	}
	if img.VisionSuggestedUse != "" {
		lines = append(lines, "  Suggested use: "+img.VisionSuggestedUse)
	}
	if img.VisionAltText != "" {
		lines = append(lines, "  Alt text: "+img.VisionAltText)
	}
	if len(img.VisionTags) > 0 {
		lines = append(lines, "  Tags: "+strings.Join(img.VisionTags, ", "))
	}
	if len(img.DominantColors) > 0 {
		lines = append(lines, "  Dominant colors: "+strings.Join(img.DominantColors, ", "))
	}
	if img.Width > 0 && img.Height > 0 {
		lines = append(lines, fmt.Sprintf("  Dimensions: %dx%dpx", img.Width, img.Height))
	}
	if img.VisionContainsText && img.VisionExtractedText != "" {
		lines = append(lines, "  Text in image: "+img.VisionExtractedText)
	}
	return strings.Join(lines, "\n")
}

func documentBlock(doc store.Asset) string {
	lines := []string{"  File: " + doc.OriginalFileName}
	switch {
	case doc.ExtractedSummary != "":
		lines = append(lines, "  Content:\n"+indent(doc.ExtractedSummary, 4))
	case doc.ExtractedText != "":
		preview := doc.ExtractedText
		if runes := []rune(preview); len(runes) > consts.DocumentPreviewChars {
			preview = string(runes[:consts.DocumentPreviewChars]) + "\n  [... truncated]"
		}
		lines = append(lines, "  Content:\n"+indent(preview, 4))
	}
	return strings.Join(lines, "\n")
}

func indent(text string, spaces int) string {
	pad := strings.Repeat(" ", spaces)
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = pad + line
	}
	return strings.Join(lines, "\n")
}
