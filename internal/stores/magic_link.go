package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	linkKeyPrefix       = "mlk"
	linkRecordVersionV1 = 1
	linkConsumeRetries  = 4
	maxEmailLength      = 65535
)

var (
	ErrLinkNotFound         = errors.New("magic link record not found")
	ErrLinkSecretMismatch   = errors.New("magic link secret mismatch")
	ErrLinkAttemptsExceeded = errors.New("magic link attempts exceeded")
	ErrLinkRedisUnavailable = errors.New("magic link redis unavailable")
)

// LinkRecord is the server-side half of a magic link. Only the secret hash is kept.
type LinkRecord struct {
	Email      string
	SecretHash [32]byte
	ExpiresAt  int64 // unix milliseconds
	Attempts   uint16
}

// Expired reports whether the record has passed its expiry at now. The expiry
// instant itself is still valid.
func (r *LinkRecord) Expired(now time.Time) bool {
	return now.UnixMilli() > r.ExpiresAt
}

type MagicLinkStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewMagicLinkStore returns a store writing keys under prefix ("mlk" when empty).
func NewMagicLinkStore(client redis.UniversalClient, prefix string) *MagicLinkStore {
	if prefix == "" {
		prefix = linkKeyPrefix
	}
	return &MagicLinkStore{
		redis:  client,
		prefix: prefix,
	}
}

func (s *MagicLinkStore) key(tokenID string) string {
	return s.prefix + ":" + tokenID
}

// Save stores record under tokenID with the given ttl.
func (s *MagicLinkStore) Save(ctx context.Context, tokenID string, record *LinkRecord, ttl time.Duration) error {
	encoded, err := encodeLinkRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(tokenID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLinkRedisUnavailable, err)
	}
	return nil
}

// Consume atomically validates providedHash against the record for tokenID and
// deletes it on success. Concurrent callers presenting the same token see exactly
// one success; the rest get ErrLinkNotFound.
func (s *MagicLinkStore) Consume(
	ctx context.Context,
	tokenID string,
	providedHash [32]byte,
	now time.Time,
	maxAttempts int,
) (*LinkRecord, error) {
	key := s.key(tokenID)

	del := func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}

	for i := 0; i < linkConsumeRetries; i++ {
		var matched *LinkRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			record, err := decodeLinkRecord(data)
			if err != nil {
				return err
			}

			if record.Expired(now) {
				if err := del(tx); err != nil {
					return err
				}
				return ErrLinkNotFound
			}

			if subtle.ConstantTimeCompare(record.SecretHash[:], providedHash[:]) != 1 {
				record.Attempts++
				if int(record.Attempts) >= maxAttempts {
					if err := del(tx); err != nil {
						return err
					}
					return ErrLinkAttemptsExceeded
				}

				ttl := time.UnixMilli(record.ExpiresAt).Sub(now)
				if ttl <= 0 {
					if err := del(tx); err != nil {
						return err
					}
					return ErrLinkNotFound
				}
				updated, err := encodeLinkRecord(record)
				if err != nil {
					return err
				}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrLinkSecretMismatch
			}

			if err := del(tx); err != nil {
				return err
			}
			matched = record
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, ErrLinkNotFound
			case errors.Is(err, ErrLinkNotFound), errors.Is(err, ErrLinkSecretMismatch), errors.Is(err, ErrLinkAttemptsExceeded):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrLinkRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, ErrLinkNotFound
}

func encodeLinkRecord(record *LinkRecord) ([]byte, error) {
	if len(record.Email) > maxEmailLength {
		return nil, errors.New("magic link email too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(linkRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Email))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Email)
	buf.Write(record.SecretHash[:])

	return buf.Bytes(), nil
}

func decodeLinkRecord(data []byte) (*LinkRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != linkRecordVersionV1 {
		return nil, errors.New("invalid magic link record version")
	}

	record := &LinkRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var emailLen uint16
	if err := binary.Read(reader, binary.BigEndian, &emailLen); err != nil {
		return nil, err
	}
	email := make([]byte, emailLen)
	if _, err := io.ReadFull(reader, email); err != nil {
		return nil, err
	}
	record.Email = string(email)

	if _, err := io.ReadFull(reader, record.SecretHash[:]); err != nil {
		return nil, err
	}
	return record, nil
}
