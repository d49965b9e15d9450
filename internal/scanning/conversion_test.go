package scanning

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	return img
}

var _ = Describe("Decode", func() {
	var (
		data        []byte
		contentType string
		img         image.Image
		err         error
	)

	JustBeforeEach(func() {
		img, err = Decode(data, contentType)
	})

	When("the receipt is a PNG", func() {
		BeforeEach(func() {
			var buf bytes.Buffer
			Expect(png.Encode(&buf, testImage(40, 20))).To(Succeed())
			data = buf.Bytes()
			contentType = "image/png"
		})

		It("should decode the image", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(40))
			Expect(img.Bounds().Dy()).To(Equal(20))
		})
	})

	When("the receipt is a JPEG with a wrong content type", func() {
		BeforeEach(func() {
			var buf bytes.Buffer
			Expect(jpeg.Encode(&buf, testImage(16, 16), nil)).To(Succeed())
			data = buf.Bytes()
			contentType = "application/octet-stream"
		})

		It("should decode by content", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(16))
		})
	})

	When("the data is not an image", func() {
		BeforeEach(func() {
			data = []byte("definitely not an image")
			contentType = "image/jpeg"
		})

		It("returns ErrConversion", func() {
			Expect(errors.Is(err, ErrConversion)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("unsupported image format"))
		})
	})

	When("the PDF is corrupt", func() {
		BeforeEach(func() {
			data = []byte("%PDF-1.4 ... fake pdf content ...")
			contentType = "application/pdf"
		})

		It("returns ErrConversion", func() {
			Expect(errors.Is(err, ErrConversion)).To(BeTrue())
		})
	})
})

var _ = Describe("EncodePNG", func() {
	It("should produce a decodable PNG", func() {
		data, err := EncodePNG(testImage(8, 4))
		Expect(err).NotTo(HaveOccurred())
		decoded, err := png.Decode(bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded.Bounds().Dx()).To(Equal(8))
	})
})

var _ = Describe("DetectContentType", func() {
	pngHeader := []byte("\x89PNG\r\n\x1a\n")
	heicHeader := []byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00")

	DescribeTable("choosing a MIME type",
		func(filename, declared string, data []byte, expected string) {
			Expect(DetectContentType(filename, declared, data)).To(Equal(expected))
		},
		Entry("declared type wins", "a.jpg", "Image/PNG; charset=binary", nil, "image/png"),
		Entry("extension when undeclared", "receipt.PDF", "", nil, "application/pdf"),
		Entry("extension when octet-stream", "IMG_0001.HEIC", "application/octet-stream", nil, "image/heic"),
		Entry("HEIC magic bytes", "upload", "", heicHeader, "image/heic"),
		Entry("sniffed PNG", "upload", "", pngHeader, "image/png"),
		Entry("sniffed PDF", "upload", "", []byte("%PDF-1.7"), "application/pdf"),
	)
})

var _ = Describe("isHEICFormat", func() {
	It("should reject short data", func() {
		Expect(isHEICFormat([]byte("ftyp"))).To(BeFalse())
	})

	It("should reject other ftyp brands", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypmp42\x00\x00"))).To(BeFalse())
	})

	It("should accept mif1", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypmif1\x00\x00"))).To(BeTrue())
	})
})

var _ = Describe("PDFText", func() {
	It("returns an error for data that is not a PDF", func() {
		_, err := PDFText([]byte("not a pdf"))
		Expect(err).To(HaveOccurred())
	})
})
