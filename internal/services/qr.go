package services

import (
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// QRService renders connection links as QR codes
type QRService struct {
	logger *logrus.Logger
}

// NewQRService creates a new QR code service
func NewQRService(logger *logrus.Logger) *QRService {
	return &QRService{
		logger: logger,
	}
}

// LinkPNG encodes link as a PNG QR code. The link carries key material and is never logged.
func (s *QRService) LinkPNG(link string) ([]byte, error) {
	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		s.logger.Errorf("Failed to generate QR code: %v", err)
		return nil, err
	}

	s.logger.Debugf("Generated QR code of %d bytes", len(png))
	return png, nil
}
