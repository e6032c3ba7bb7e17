package curation

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/ralt/apm/internal/models"
	"github.com/ralt/apm/internal/signer"
	"github.com/ralt/apm/internal/utils"
	"github.com/sirupsen/logrus"
)

// WriteReport writes report as indented JSON to path. A ".gz" suffix
// gzip-compresses the output. With a non-nil signer a detached armored
// signature of the written bytes goes to path + ".asc".
func WriteReport(path string, report *Report, s signer.Signer) error {
	data, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')

	if strings.HasSuffix(path, ".gz") {
		data, err = utils.GzipCompress(data)
		if err != nil {
			return fmt.Errorf("failed to compress report: %w", err)
		}
	}

	if err := utils.WriteFileAtomic(path, data, 0644); err != nil {
		return models.NewError(models.ErrPersist, path, err)
	}

	if s != nil {
		sig, err := s.SignDetached(data)
		if err != nil {
			return fmt.Errorf("failed to sign report: %w", err)
		}
		if err := utils.WriteFileAtomic(path+".asc", sig, 0644); err != nil {
			return models.NewError(models.ErrPersist, path+".asc", err)
		}
		logrus.Infof("Report signed: %s.asc", path)
	}

	logrus.Infof("Report written: %s", path)
	logrus.Debugf("Report sha256: %s", utils.SHA256(data))
	return nil
}

// ReadReport reads a report written by WriteReport
func ReadReport(data []byte) (*Report, error) {
	if utils.IsGzip(data) {
		var err error
		data, err = utils.GzipDecompress(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress report: %w", err)
		}
	}

	var report Report
	if err := sonic.ConfigStd.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &report, nil
}
