package assets

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path"
	"sort"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/codefionn/hyphertext/internal/consts"
)

// ErrLegacyDoc is returned for binary .doc uploads.
var ErrLegacyDoc = errors.New("Legacy .doc format is not supported. Please convert to .docx and re-upload.")

const docxTruncatedMarker = "\n\n[... content truncated. Document continues beyond this point.]"

var docxMediaTypes = map[string]string{
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

type docxParagraph struct {
	Style string
	Text  string
}

// UnmarshalXML flattens the runs of a w:p element. Tabs and breaks are kept
// as whitespace.
func (p *docxParagraph) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	var sb strings.Builder
	inText := false
	for depth := 1; depth > 0; {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			case "pStyle":
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						p.Style = attr.Value
					}
				}
			}
		case xml.EndElement:
			depth--
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	p.Text = sb.String()
	return nil
}

type docxCell struct {
	Paragraphs []docxParagraph `xml:"p"`
}

func (c docxCell) text() string {
	parts := make([]string, 0, len(c.Paragraphs))
	for _, p := range c.Paragraphs {
		parts = append(parts, p.Text)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxTable struct {
	Rows []docxRow `xml:"tr"`
}

type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
		Tables     []docxTable     `xml:"tbl"`
	} `xml:"body"`
}

type docxStyles struct {
	Styles []struct {
		ID   string `xml:"styleId,attr"`
		Name struct {
			Val string `xml:"val,attr"`
		} `xml:"name"`
	} `xml:"style"`
}

// ExtractDOCX reads paragraphs, tables and embedded media from an Office
// Open XML document.
func ExtractDOCX(ctx context.Context, data []byte) (Extraction, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Extraction{}, fmt.Errorf("Could not open DOCX: %v", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	main, ok := files["word/document.xml"]
	if !ok {
		return Extraction{}, fmt.Errorf("Could not open DOCX: word/document.xml is missing")
	}
	var doc docxDocument
	if err := decodeZipXML(main, &doc); err != nil {
		return Extraction{}, fmt.Errorf("Could not open DOCX: %v", err)
	}

	styleNames := map[string]string{}
	if f, ok := files["word/styles.xml"]; ok {
		var styles docxStyles
		if decodeZipXML(f, &styles) == nil {
			for _, s := range styles.Styles {
				styleNames[s.ID] = s.Name.Val
			}
		}
	}

	var budget textBudget
	for _, p := range doc.Body.Paragraphs {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		style := p.Style
		if name, ok := styleNames[style]; ok {
			style = name
		}
		chunk := "\n" + text
		if strings.Contains(strings.ToLower(style), "heading") {
			chunk = "\n\n## " + text + "\n"
		}
		if !budget.add(chunk, 50, docxTruncatedMarker) {
			break
		}
	}

rows:
	for _, table := range doc.Body.Tables {
		for _, row := range table.Rows {
			if budget.truncated {
				break rows
			}
			var cells []string
			for _, c := range row.Cells {
				if text := c.text(); text != "" {
					cells = append(cells, text)
				}
			}
			if len(cells) == 0 {
				continue
			}
			chunk := strings.Join(cells, " | ") + "\n"
			if budget.total+len([]rune(chunk)) > consts.MaxExtractedTextChars {
				budget.truncated = true
				break rows
			}
			budget.parts = append(budget.parts, chunk)
			budget.total += len([]rune(chunk))
		}
	}

	var out Extraction
	budget.finish(&out)
	if err := ctx.Err(); err != nil {
		return out, err
	}
	out.Images = docxImages(zr.File)
	return out, nil
}

func decodeZipXML(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(v)
}

func docxImages(files []*zip.File) []EmbeddedImage {
	var media []*zip.File
	for _, f := range files {
		if strings.HasPrefix(f.Name, "word/media/") {
			media = append(media, f)
		}
	}
	sort.Slice(media, func(i, j int) bool { return media[i].Name < media[j].Name })

	var images []EmbeddedImage
	for _, f := range media {
		mime, ok := docxMediaTypes[strings.ToLower(path.Ext(f.Name))]
		if !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		// Undecodable images are kept with unknown dimensions.
		w, h, decoded := imageDimensions(data)
		if decoded && (w < consts.MinEmbeddedImageSide || h < consts.MinEmbeddedImageSide) {
			continue
		}
		images = append(images, EmbeddedImage{Data: data, MimeType: mime, Width: w, Height: h})
	}
	return images
}

// imageDimensions decodes only the image header. ok is false when the
// format is unknown or the header is corrupt.
func imageDimensions(data []byte) (w, h int, ok bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
