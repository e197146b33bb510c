package seed

import (
	"bytes"
	"fmt"

	"github.com/kdomanski/iso9660"

	"github.com/virtadm/virtadm/internal/config"
)

// BuildISO assembles a NoCloud seed ISO from a seed document. The
// volume label must be CIDATA for the datasource to recognize it.
func BuildISO(doc *config.SeedDoc) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("seed document cannot be nil")
	}

	userData, err := BuildUserData(doc)
	if err != nil {
		return nil, err
	}
	metaData, err := BuildMetaData(doc)
	if err != nil {
		return nil, err
	}
	networkConfig, err := BuildNetworkConfig(doc)
	if err != nil {
		return nil, err
	}

	writer, err := iso9660.NewWriter()
	if err != nil {
		return nil, fmt.Errorf("failed to create ISO writer: %w", err)
	}
	defer func() {
		// scratch files only; the image is already in memory
		_ = writer.Cleanup()
	}()

	if err := writer.AddFile(bytes.NewReader([]byte(userData)), "user-data"); err != nil {
		return nil, fmt.Errorf("failed to add user-data: %w", err)
	}
	if err := writer.AddFile(bytes.NewReader([]byte(metaData)), "meta-data"); err != nil {
		return nil, fmt.Errorf("failed to add meta-data: %w", err)
	}
	if networkConfig != "" {
		if err := writer.AddFile(bytes.NewReader([]byte(networkConfig)), "network-config"); err != nil {
			return nil, fmt.Errorf("failed to add network-config: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := writer.WriteTo(&buf, "CIDATA"); err != nil {
		return nil, fmt.Errorf("failed to write ISO image: %w", err)
	}

	return buf.Bytes(), nil
}
