package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"sort"
	"strings"

	gopdf "github.com/VantageDataChat/GoPDF2"
	lpdf "github.com/ledongthuc/pdf"

	"doctranslate/internal/errlog"
	"doctranslate/internal/model"
)

// UnreadablePagePlaceholder is the content of a page no extractor could read.
const UnreadablePagePlaceholder = "Không thể trích xuất nội dung từ trang này"

// maxOCRImagesPerPage bounds the images recognized for one page.
const maxOCRImagesPerPage = 5

// PDFPageCount returns the number of pages of a PDF.
func PDFPageCount(data []byte) (int, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return 0, errors.New("not a PDF file")
	}

	var count int
	err := guard("GoPDF2 page count", func() error {
		n, err := gopdf.GetSourcePDFPageCountFromBytes(data)
		count = n
		return err
	})
	if err == nil && count > 0 {
		return count, nil
	}
	log.Printf("[PDF] primary page count failed (%v), trying fallback reader", err)

	var reader *lpdf.Reader
	ferr := guard("pdf reader", func() error {
		r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
		reader = r
		return err
	})
	if ferr != nil {
		return 0, fmt.Errorf("%v; fallback: %w", err, ferr)
	}
	if n := reader.NumPage(); n > 0 {
		return n, nil
	}
	return 0, errors.New("document has no pages")
}

// pdfSource holds the lazily opened secondary readers of one PDF.
type pdfSource struct {
	data []byte

	fallback     *lpdf.Reader
	fallbackDone bool

	images     map[int][]gopdf.ExtractedImage
	imagesDone bool
}

// parsePDF extracts one unit per page. Empty pages fall back to the second
// text extractor, then OCR, then the placeholder.
func (dp *DocumentParser) parsePDF(ctx context.Context, data []byte) (*model.Bundle, error) {
	pageCount, err := PDFPageCount(data)
	if err != nil {
		return nil, model.Unreadable(model.FormatPDF, err)
	}

	src := &pdfSource{data: data}
	b := &model.Bundle{Format: model.FormatPDF, Pages: make([]model.Page, 0, pageCount)}
	ocrPages, placeholders := 0, 0
	for i := 0; i < pageCount; i++ {
		text := src.primaryText(i)
		if text == "" {
			text = src.fallbackText(i)
		}
		if text == "" && dp.OCR != nil {
			text = dp.ocrPage(ctx, src, i)
			if text != "" {
				ocrPages++
			}
		}
		if text == "" {
			placeholders++
			errlog.Logf("[PDF] page %d: no text from any extractor, using placeholder", i+1)
			text = UnreadablePagePlaceholder
		}
		b.Pages = append(b.Pages, model.Page{Number: i + 1, Text: model.Text{Content: text}})
	}

	log.Printf("[PDF] extracted %d pages (%d by OCR, %d placeholders)", pageCount, ocrPages, placeholders)
	return b, nil
}

func (s *pdfSource) primaryText(page int) string {
	var text string
	err := guard("GoPDF2 text", func() error {
		t, err := gopdf.ExtractPageText(s.data, page)
		text = t
		return err
	})
	if err != nil {
		log.Printf("[PDF] page %d: primary extractor failed: %v", page+1, err)
		return ""
	}
	return CleanText(text)
}

func (s *pdfSource) fallbackText(page int) string {
	if !s.fallbackDone {
		s.fallbackDone = true
		err := guard("pdf reader", func() error {
			r, err := lpdf.NewReader(bytes.NewReader(s.data), int64(len(s.data)))
			s.fallback = r
			return err
		})
		if err != nil {
			log.Printf("[PDF] fallback reader unavailable: %v", err)
			s.fallback = nil
		}
	}
	if s.fallback == nil || page+1 > s.fallback.NumPage() {
		return ""
	}

	var text string
	err := guard("pdf plain text", func() error {
		p := s.fallback.Page(page + 1)
		if p.V.IsNull() {
			return nil
		}
		t, err := p.GetPlainText(nil)
		text = t
		return err
	})
	if err != nil {
		log.Printf("[PDF] page %d: fallback extractor failed: %v", page+1, err)
		return ""
	}
	return CleanText(text)
}

// pageImages returns the encoded images of a 0-based page, largest first.
func (s *pdfSource) pageImages(page int) [][]byte {
	if !s.imagesDone {
		s.imagesDone = true
		err := guard("GoPDF2 images", func() error {
			m, err := gopdf.ExtractImagesFromAllPages(s.data)
			s.images = m
			return err
		})
		if err != nil {
			log.Printf("[PDF] image extraction error: %v", err)
		}
	}

	imgs := append([]gopdf.ExtractedImage(nil), s.images[page]...)
	sort.SliceStable(imgs, func(i, j int) bool {
		return imgs[i].Width*imgs[i].Height > imgs[j].Width*imgs[j].Height
	})

	var out [][]byte
	for _, img := range imgs {
		if len(out) >= maxOCRImagesPerPage {
			break
		}
		// Icons, bullets and rules carry no text.
		if len(img.Data) == 0 || img.Width < 50 || img.Height < 50 {
			continue
		}
		if encoded := encodePageImage(img); encoded != nil {
			out = append(out, encoded)
		}
	}
	return out
}

func (dp *DocumentParser) ocrPage(ctx context.Context, src *pdfSource, page int) string {
	images := src.pageImages(page)
	if len(images) == 0 {
		log.Printf("[PDF] page %d: no images to recognize", page+1)
		return ""
	}

	timeout := dp.OCRTimeout
	if timeout <= 0 {
		timeout = DefaultOCRTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var parts []string
	for _, img := range images {
		text, err := dp.OCR.Recognize(ctx, img)
		if err != nil {
			log.Printf("[PDF] page %d: OCR failed: %v", page+1, err)
			errlog.Logf("[PDF] page %d: OCR failed: %v", page+1, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if text = CleanText(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// encodePageImage turns an extracted image into JPEG or PNG bytes.
// DCTDecode streams are already JPEG; FlateDecode streams are raw pixels.
func encodePageImage(img gopdf.ExtractedImage) []byte {
	switch img.Filter {
	case "DCTDecode":
		return img.Data
	case "FlateDecode", "":
		if isImageJPEGOrPNG(img.Data) {
			return img.Data
		}
		return rawPixelsToJPEG(img.Data, img.Width, img.Height, img.ColorSpace)
	}
	if isImageJPEGOrPNG(img.Data) {
		return img.Data
	}
	return nil
}

// isImageJPEGOrPNG checks for JPEG or PNG magic bytes.
func isImageJPEGOrPNG(data []byte) bool {
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return true
	}
	return len(data) >= 4 && string(data[:4]) == "\x89PNG"
}

// rawPixelsToJPEG encodes decompressed PDF image samples as JPEG. Samples
// written with a PNG predictor carry one filter byte per row and are
// unfiltered first.
func rawPixelsToJPEG(data []byte, width, height int, colorSpace string) []byte {
	if width <= 0 || height <= 0 {
		return nil
	}

	isGray := strings.Contains(colorSpace, "Gray")
	bytesPerPixel := 3
	if isGray {
		bytesPerPixel = 1
	}

	rowBytes := width * bytesPerPixel
	expectedPlain := rowBytes * height
	expectedPNG := (rowBytes + 1) * height

	hasPNGPredictor := len(data) == expectedPNG && len(data) != expectedPlain
	if !hasPNGPredictor && len(data) < expectedPlain {
		return nil
	}

	pixels := data
	if hasPNGPredictor {
		pixels = decodePNGPredictor(data, width, height, bytesPerPixel)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		srcOff := y * rowBytes
		dstOff := y * img.Stride
		for x := 0; x < width; x++ {
			if isGray {
				g := pixels[srcOff]
				img.Pix[dstOff], img.Pix[dstOff+1], img.Pix[dstOff+2] = g, g, g
			} else {
				img.Pix[dstOff] = pixels[srcOff]
				img.Pix[dstOff+1] = pixels[srcOff+1]
				img.Pix[dstOff+2] = pixels[srcOff+2]
			}
			img.Pix[dstOff+3] = 255
			srcOff += bytesPerPixel
			dstOff += 4
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil
	}
	return buf.Bytes()
}

// decodePNGPredictor reverses PNG row filters (None, Sub, Up, Average,
// Paeth) and drops the filter bytes.
func decodePNGPredictor(data []byte, width, height, bytesPerPixel int) []byte {
	rowBytes := width * bytesPerPixel
	srcStride := rowBytes + 1
	out := make([]byte, rowBytes*height)

	for y := 0; y < height; y++ {
		srcRow := data[y*srcStride : y*srcStride+srcStride]
		filtered := srcRow[1:]
		dstRow := out[y*rowBytes : y*rowBytes+rowBytes]

		var prevRow []byte
		if y > 0 {
			prevRow = out[(y-1)*rowBytes : y*rowBytes]
		}
		at := func(row []byte, i int) byte {
			if row == nil || i < 0 {
				return 0
			}
			return row[i]
		}

		switch srcRow[0] {
		case 1: // Sub
			for i := 0; i < rowBytes; i++ {
				dstRow[i] = filtered[i] + at(dstRow, i-bytesPerPixel)
			}
		case 2: // Up
			for i := 0; i < rowBytes; i++ {
				dstRow[i] = filtered[i] + at(prevRow, i)
			}
		case 3: // Average
			for i := 0; i < rowBytes; i++ {
				left, up := int(at(dstRow, i-bytesPerPixel)), int(at(prevRow, i))
				dstRow[i] = filtered[i] + byte((left+up)/2)
			}
		case 4: // Paeth
			for i := 0; i < rowBytes; i++ {
				dstRow[i] = filtered[i] + paethPredictor(at(dstRow, i-bytesPerPixel), at(prevRow, i), at(prevRow, i-bytesPerPixel))
			}
		default:
			copy(dstRow, filtered)
		}
	}
	return out
}

func paethPredictor(a, b, c byte) byte {
	ia, ib, ic := int(a), int(b), int(c)
	p := ia + ib - ic
	pa, pb, pc := abs(p-ia), abs(p-ib), abs(p-ic)
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
