package operator

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/roach88/textflow/internal/value"
)

// HashAlgorithm names a digest. Names are case-sensitive.
type HashAlgorithm string

const (
	HashMD5    HashAlgorithm = "MD5"
	HashSHA1   HashAlgorithm = "SHA1"
	HashSHA224 HashAlgorithm = "SHA224"
	HashSHA256 HashAlgorithm = "SHA256"
	HashSHA384 HashAlgorithm = "SHA384"
	HashSHA512 HashAlgorithm = "SHA512"
)

var hashers = map[HashAlgorithm]func() hash.Hash{
	HashMD5:    md5.New,
	HashSHA1:   sha1.New,
	HashSHA224: sha256.New224,
	HashSHA256: sha256.New,
	HashSHA384: sha512.New384,
	HashSHA512: sha512.New,
}

// HashConfig is the typed configuration of a hash node.
type HashConfig struct {
	Algorithm HashAlgorithm
}

func decodeHashConfig(cfg value.Object) (HashConfig, error) {
	alg, err := stringField(KindHash, cfg, "algorithm", string(HashSHA256))
	if err != nil {
		return HashConfig{}, err
	}
	if _, ok := hashers[HashAlgorithm(alg)]; !ok {
		return HashConfig{}, &ConfigError{Kind: KindHash, Field: "algorithm", Message: fmt.Sprintf("algorithm %s not found", alg)}
	}
	return HashConfig{Algorithm: HashAlgorithm(alg)}, nil
}

func hashDefinition() Definition {
	return Definition{
		Kind:      KindHash,
		Name:      "Hash",
		Inputs:    inputPorts,
		Outputs:   outputPorts,
		Transform: typed(decodeHashConfig, runHash),
		Defaults:  value.Object{"algorithm": value.String(HashSHA256)},
	}
}

func runHash(inputs []value.Value, cfg HashConfig) ([]value.Value, error) {
	h := hashers[cfg.Algorithm]()
	h.Write([]byte(firstText(inputs)))
	return []value.Value{value.String(hex.EncodeToString(h.Sum(nil)))}, nil
}
