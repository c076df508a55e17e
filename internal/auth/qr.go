package auth

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QRCodeEncoder renders provisioning URIs as PNG data URLs
type QRCodeEncoder struct {
	size int
}

func NewQRCodeEncoder(size int) *QRCodeEncoder {
	if size <= 0 {
		size = 200
	}
	return &QRCodeEncoder{size: size}
}

func (e *QRCodeEncoder) DataURL(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := qr.PNG(e.size)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
