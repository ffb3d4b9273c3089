package crypto

import (
	"encoding/hex"
	"strconv"

	"lukechampine.com/blake3"

	"github.com/iudanet/peersync/internal/models"
)

// HashSize - размер content hash в байтах (BLAKE3-256)
const HashSize = 32

// emptyDigest digest пустого набора записей
var emptyDigest = Hash(nil)

// Hash вычисляет BLAKE3-256 от данных и возвращает hex-encoded строку.
// Используется для contentHash записей и dataDigest узла.
func Hash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Digest вычисляет rolling hash набора записей по манифесту.
// Хешируются отсортированные строки id:version:hash, поэтому digest
// равен у двух узлов тогда и только тогда, когда совпадают манифесты.
func Digest(manifest models.Manifest) string {
	if len(manifest) == 0 {
		return emptyDigest
	}

	h := blake3.New(HashSize, nil)
	for _, id := range manifest.IDs() {
		e := manifest[id]
		_, _ = h.Write([]byte(id))
		_, _ = h.Write([]byte{':'})
		_, _ = h.Write([]byte(strconv.FormatUint(e.Version, 10)))
		_, _ = h.Write([]byte{':'})
		_, _ = h.Write([]byte(e.ContentHash))
		_, _ = h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint короткий отпечаток публичного ключа для сверки человеком:
// первые 8 байт BLAKE3 группами по два байта, например 1a2b:3c4d:5e6f:7a8b
func Fingerprint(publicKey []byte) string {
	if len(publicKey) == 0 {
		return ""
	}
	sum := blake3.Sum256(publicKey)
	h := hex.EncodeToString(sum[:8])
	return h[0:4] + ":" + h[4:8] + ":" + h[8:12] + ":" + h[12:16]
}
