package certificate

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
)

// Поля, попадающие на артефакт
type Fields struct {
	RecipientName string
	TargetName    string
	IssueDate     time.Time
	Code          string
	VerifyURL     string
}

type ArtifactRenderer interface {
	Render(fields Fields) ([]byte, error)
}

// Рисуем PNG: альбомный лист, текст по центру, QR с ссылкой проверки в углу
type PNGRenderer struct {
	titleFace font.Face
	bodyFace  font.Face
	smallFace font.Face
}

const (
	canvasWidth  = 1754
	canvasHeight = 1240
	qrSize       = 220
)

func NewPNGRenderer(fontPath string) (*PNGRenderer, error) {
	if fontPath == "" {
		return nil, fmt.Errorf("certificate font path is empty")
	}

	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("could not read certificate font: %w", err)
	}
	parsed, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("could not parse certificate font: %w", err)
	}

	return &PNGRenderer{
		titleFace: truetype.NewFace(parsed, &truetype.Options{Size: 72}),
		bodyFace:  truetype.NewFace(parsed, &truetype.Options{Size: 40}),
		smallFace: truetype.NewFace(parsed, &truetype.Options{Size: 28}),
	}, nil
}

func (r *PNGRenderer) Render(f Fields) ([]byte, error) {
	dc := gg.NewContext(canvasWidth, canvasHeight)

	// Фон и рамка
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetRGB(0.13, 0.18, 0.32)
	dc.SetLineWidth(6)
	dc.DrawRectangle(40, 40, canvasWidth-80, canvasHeight-80)
	dc.Stroke()

	cx := float64(canvasWidth) / 2

	dc.SetFontFace(r.titleFace)
	dc.DrawStringAnchored("Certificate of Completion", cx, 260, 0.5, 0.5)

	dc.SetFontFace(r.bodyFace)
	dc.DrawStringAnchored(fmt.Sprintf("Awarded to: %s", f.RecipientName), cx, 460, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("For successfully completing: %s", f.TargetName), cx, 540, 0.5, 0.5)

	dc.SetFontFace(r.smallFace)
	dc.DrawStringAnchored(fmt.Sprintf("Issued on: %s", f.IssueDate.Format("2006-01-02")), cx, 680, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("Certificate ID: %s", f.Code), cx, 730, 0.5, 0.5)

	// QR ведет на публичную страницу проверки
	qr, err := qrcode.New(f.VerifyURL, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("could not build qr code: %w", err)
	}
	dc.DrawImage(qr.Image(qrSize), canvasWidth-qrSize-80, canvasHeight-qrSize-80)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("could not encode certificate png: %w", err)
	}
	return buf.Bytes(), nil
}
