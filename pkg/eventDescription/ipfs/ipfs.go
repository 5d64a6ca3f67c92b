package ipfs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/gnosis/tradingdb/internal/config"
	"github.com/gnosis/tradingdb/pkg/eventDescription"
	"go.uber.org/zap"
)

// Maximum size of a description document.
const maxDocumentSize = 1 << 20

type Ipfs struct {
	httpClient *http.Client
	logger     *zap.Logger
	config     *config.Config
}

func NewIpfs(hc *http.Client, l *zap.Logger, cfg *config.Config) *Ipfs {
	return &Ipfs{
		httpClient: hc,
		logger:     l,
		config:     cfg,
	}
}

// ValidateHash checks that ipfsHash is a base58 encoded sha2-256 multihash (CIDv0).
func ValidateHash(ipfsHash string) error {
	decoded := base58.Decode(ipfsHash)
	if len(decoded) != 34 || decoded[0] != 0x12 || decoded[1] != 0x20 {
		return fmt.Errorf("invalid ipfs hash '%s'", ipfsHash)
	}
	return nil
}

func (i *Ipfs) GetUrlForHash(ipfsHash string) string {
	return fmt.Sprintf("%s/ipfs/%s", strings.TrimSuffix(i.config.IpfsConfig.Url, "/"), ipfsHash)
}

func (i *Ipfs) Fetch(ctx context.Context, ipfsHash string) (*eventDescription.Description, error) {
	if err := ValidateHash(ipfsHash); err != nil {
		return nil, err
	}
	url := i.GetUrlForHash(ipfsHash)

	if i.config.IpfsConfig.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.config.IpfsConfig.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		i.logger.Sugar().Errorw("Failed to create a new HTTP request with context",
			zap.Error(err),
			zap.String("ipfsHash", ipfsHash),
		)
		return nil, err
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		i.logger.Sugar().Errorw("Failed to perform HTTP request",
			zap.Error(err),
			zap.String("ipfsHash", ipfsHash),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status: %d", resp.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, err
	}

	description := &eventDescription.Description{}
	if err := json.Unmarshal(content, description); err != nil {
		i.logger.Sugar().Errorw("Failed to parse event description",
			zap.Error(err),
			zap.String("ipfsHash", ipfsHash),
		)
		return nil, err
	}

	i.logger.Sugar().Debugw("Fetched event description",
		zap.String("ipfsHash", ipfsHash),
		zap.String("title", description.Title),
	)
	return description, nil
}
