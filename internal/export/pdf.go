package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/yuin/goldmark"
	xdraw "golang.org/x/image/draw"

	"Storyboard/internal/state"
)

// Page is one storyboard entry.
type Page struct {
	Label       string
	Title       string
	Description string // markdown
	Dialogue    string
	Still       image.Image
	Points      []state.Point
	Duration    float64
}

const (
	pageMargin  = 12.0
	stillWidth  = 60.0
	mapSize     = 40.0
	thumbPixels = 480
)

// WriteStoryboardPDF writes one A4 page per entry with the rendered still,
// a map of the drawn path and the scene text.
func WriteStoryboardPDF(w io.Writer, title string, pages []Page) error {
	p := gofpdf.New("P", "mm", "A4", "")
	p.SetMargins(pageMargin, pageMargin, pageMargin)
	p.SetTitle(title, true)
	tr := p.UnicodeTranslatorFromDescriptor("")

	if len(pages) == 0 {
		p.AddPage()
		p.SetFont("Helvetica", "B", 18)
		p.Cell(0, 10, tr(title))
	}

	for i, pg := range pages {
		p.AddPage()
		p.SetFont("Helvetica", "B", 16)
		heading := pg.Label
		if pg.Title != "" {
			heading = fmt.Sprintf("%s: %s", pg.Label, pg.Title)
		}
		p.Cell(0, 9, tr(heading))
		p.Ln(12)

		top := p.GetY()
		textX := pageMargin
		if pg.Still != nil {
			name := fmt.Sprintf("still-%d", i)
			if err := registerPNG(p, name, pg.Still); err != nil {
				return fmt.Errorf("page %d still: %w", i+1, err)
			}
			b := pg.Still.Bounds()
			h := stillWidth * float64(b.Dy()) / float64(b.Dx())
			p.ImageOptions(name, pageMargin, top, stillWidth, h, false,
				gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
			textX = pageMargin + stillWidth + 8
		}

		if len(pg.Points) > 1 {
			drawPathMap(p, pg.Points, textX, top, mapSize)
			p.SetXY(textX, top+mapSize+2)
			p.SetFont("Helvetica", "", 8)
			p.Cell(0, 4, fmt.Sprintf("%d points, %.1fs drawn", len(pg.Points), pg.Duration))
			top += mapSize + 10
		}

		p.SetXY(textX, top)
		p.SetLeftMargin(textX)
		if pg.Description != "" {
			p.SetFont("Helvetica", "", 11)
			html, err := markdownToBasicHTML(pg.Description)
			if err != nil {
				return fmt.Errorf("page %d description: %w", i+1, err)
			}
			basic := p.HTMLBasicNew()
			basic.Write(5.5, tr(html))
			p.Ln(8)
		}
		if pg.Dialogue != "" {
			p.SetFont("Helvetica", "I", 11)
			p.MultiCell(0, 5.5, tr("\""+pg.Dialogue+"\""), "", "L", false)
		}
		p.SetLeftMargin(pageMargin)
	}

	if err := p.Error(); err != nil {
		return err
	}
	return p.Output(w)
}

// drawPathMap draws every stroke scaled into a size x size box at (x, y).
func drawPathMap(p *gofpdf.Fpdf, points []state.Point, x, y, size float64) {
	p.SetDrawColor(180, 180, 180)
	p.SetLineWidth(0.2)
	p.Rect(x, y, size, size, "D")

	b := state.Bounds(points, 4)
	if b.Empty() {
		return
	}
	scale := size / max(b.Width, b.Height)
	ox := x + (size-b.Width*scale)/2
	oy := y + (size-b.Height*scale)/2

	p.SetDrawColor(0, 0, 0)
	p.SetLineWidth(0.4)
	for _, seg := range state.Segments(points) {
		for i := 1; i < len(seg); i++ {
			p.Line(
				ox+(seg[i-1].X-b.X)*scale, oy+(seg[i-1].Y-b.Y)*scale,
				ox+(seg[i].X-b.X)*scale, oy+(seg[i].Y-b.Y)*scale,
			)
		}
	}
}

func registerPNG(p *gofpdf.Fpdf, name string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, thumbnail(img, thumbPixels)); err != nil {
		return err
	}
	p.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, &buf)
	return p.Error()
}

// thumbnail downsizes img so its width is at most maxW.
func thumbnail(img image.Image, maxW int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxW {
		return img
	}
	h := b.Dy() * maxW / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxW, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// markdownToBasicHTML renders markdown and maps it onto the tags gofpdf's
// basic HTML writer understands.
func markdownToBasicHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	r := strings.NewReplacer(
		"<strong>", "<b>", "</strong>", "</b>",
		"<em>", "<i>", "</em>", "</i>",
		"<p>", "", "</p>", "<br>",
		"<ul>", "", "</ul>", "",
		"<ol>", "", "</ol>", "",
		"<li>", "- ", "</li>", "<br>",
		"<code>", "", "</code>", "",
		"<h1>", "<b>", "</h1>", "</b><br>",
		"<h2>", "<b>", "</h2>", "</b><br>",
		"<h3>", "<b>", "</h3>", "</b><br>",
		"\n", "",
	)
	return strings.TrimSuffix(r.Replace(buf.String()), "<br>"), nil
}
