package records

import (
	"context"
	"fmt"
	"time"

	"retainer/internal/intake"
	"retainer/internal/logging"
	"retainer/internal/security"
)

// Service seals sensitive fields around a Store and handles signature uploads.
type Service struct {
	Store      Store
	Signatures *SignatureStore
	Cipher     *security.FieldCipher
	Now        func() time.Time
}

func NewService(store Store, sigs *SignatureStore, cipher *security.FieldCipher) *Service {
	return &Service{Store: store, Signatures: sigs, Cipher: cipher, Now: time.Now}
}

func (s *Service) Get(ctx context.Context, email string) (*Record, error) {
	email = intake.NormalizeEmail(email)
	if !intake.ValidEmail(email) {
		return nil, &intake.ValidationError{Msg: "valid email query parameter is required"}
	}
	rec, err := s.Store.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.open(rec); err != nil {
		return nil, fmt.Errorf("open record %s: %w", email, err)
	}
	return rec, nil
}

// Put replaces the record for the request email. fallbackEmail is used when
// the body carries none.
func (s *Service) Put(ctx context.Context, req *PutRequest, fallbackEmail string) (*Record, error) {
	email := intake.NormalizeEmail(req.Email.String())
	if email == "" {
		email = intake.NormalizeEmail(fallbackEmail)
	}
	if !intake.ValidEmail(email) {
		return nil, &intake.ValidationError{Msg: "valid email is required"}
	}

	rec := req.record(email)
	rec.UpdatedAt = s.now()

	if !req.Signature.Blank() {
		rec.SignatureURL = s.saveSignature(ctx, email, req.Signature.String())
	}

	stored := *rec
	if err := s.seal(&stored); err != nil {
		return nil, fmt.Errorf("seal record %s: %w", email, err)
	}
	if err := s.Store.Put(ctx, &stored); err != nil {
		return nil, err
	}
	logging.Info("record saved", "email", email)
	return rec, nil
}

// saveSignature stores a PNG signature and returns its URL. A signature that
// is not a PNG data URL or cannot be stored is logged and skipped.
func (s *Service) saveSignature(ctx context.Context, email, raw string) string {
	du, err := intake.ParseSignature(raw)
	if err != nil {
		logging.Warn("signature skipped", "email", email, "err", err)
		return ""
	}
	if s.Signatures == nil {
		logging.Warn("signature skipped", "email", email, "err", "signature storage is not configured")
		return ""
	}
	url, err := s.Signatures.Save(ctx, email, du.Data)
	if err != nil {
		logging.Error("signature upload failed", "email", email, "err", err)
		return ""
	}
	logging.Info("signature stored", "email", email, "url", url)
	return url
}

// ListUpdatedSince returns opened records for export.
func (s *Service) ListUpdatedSince(ctx context.Context, since time.Time) ([]Record, error) {
	recs, err := s.Store.ListUpdatedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if err := s.open(&recs[i]); err != nil {
			return nil, fmt.Errorf("open record %s: %w", recs[i].Email, err)
		}
	}
	return recs, nil
}

func (s *Service) seal(rec *Record) error {
	var err error
	if rec.DOB, err = s.Cipher.Seal(rec.DOB); err != nil {
		return err
	}
	rec.DriversLicense, err = s.Cipher.Seal(rec.DriversLicense)
	return err
}

func (s *Service) open(rec *Record) error {
	var err error
	if rec.DOB, err = s.Cipher.Open(rec.DOB); err != nil {
		return err
	}
	rec.DriversLicense, err = s.Cipher.Open(rec.DriversLicense)
	return err
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
