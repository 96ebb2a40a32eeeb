package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/captoken"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/docs"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/ids"
)

// DocStore implements docs.Service on PostgreSQL.
type DocStore struct {
	db *sql.DB
}

var _ docs.Service = (*DocStore)(nil)

func (s *DocStore) CreateDocument(ctx context.Context, doc docs.Document) (docs.Document, error) {
	doc.Title = strings.TrimSpace(doc.Title)
	if doc.UserID == "" || doc.Title == "" {
		return docs.Document{}, docs.ErrInvalidInput
	}
	if doc.ID == "" {
		doc.ID = ids.WithPrefix("doc")
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	analytics, _ := json.Marshal(doc.Analytics)
	_, err := s.db.ExecContext(ctx, `
		insert into documents(id, user_id, title, file_url, signed_file_url, archived, expires_at, analytics)
		values ($1,$2,$3,$4,$5,false,$6,$7)
	`, doc.ID, doc.UserID, doc.Title, doc.FileURL, doc.SignedFileURL, nullTime(doc.ExpiresAt), analytics)
	if err != nil {
		return docs.Document{}, err
	}
	return doc, nil
}

const documentColumns = `id, user_id, title, file_url, signed_file_url, archived, archived_at, expires_at, analytics, created_at, updated_at`

func (s *DocStore) GetDocument(ctx context.Context, id, ownerID string) (docs.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+documentColumns+` from documents where id=$1 and user_id=$2`, id, ownerID)
	return scanDocument(row)
}

func (s *DocStore) ListDocuments(ctx context.Context, ownerID string, archived bool) ([]docs.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+documentColumns+` from documents where user_id=$1 and archived=$2 order by created_at desc`,
		ownerID, archived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []docs.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *DocStore) ArchiveDocument(ctx context.Context, id, ownerID string) (docs.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		update documents
		set archived = true,
		    archived_at = coalesce(archived_at, now()),
		    updated_at = now()
		where id=$1 and user_id=$2
		returning `+documentColumns, id, ownerID)
	return scanDocument(row)
}

// RestoreDocument is idempotent: restoring an already-restored document still
// returns the row unchanged.
func (s *DocStore) RestoreDocument(ctx context.Context, id, ownerID string) (docs.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		update documents
		set archived = false,
		    archived_at = null,
		    updated_at = case when archived then now() else updated_at end
		where id=$1 and user_id=$2
		returning `+documentColumns, id, ownerID)
	return scanDocument(row)
}

// CreateBulkSend fans one send out into N signature-request rows plus one
// aggregate row. The inserts are deliberately issued as separate statements
// with no surrounding transaction, mirroring the production write pattern; a
// crash mid-way leaves requests without an aggregate row. The idempotency
// key, when present, makes client retries converge on the first batch.
func (s *DocStore) CreateBulkSend(ctx context.Context, in docs.BulkSendInput, idemKey string) (docs.BulkSendResult, error) {
	if len(in.DocumentIDs) == 0 {
		return docs.BulkSendResult{}, docs.ErrInvalidInput
	}
	if strings.TrimSpace(in.Recipient.Email) == "" || strings.TrimSpace(in.Recipient.Name) == "" {
		return docs.BulkSendResult{}, docs.ErrInvalidInput
	}

	if idemKey != "" {
		var batchID string
		err := s.db.QueryRowContext(ctx,
			`select batch_id from bulk_sends where sender_id=$1 and idempotency_key=$2`,
			in.SenderID, idemKey).Scan(&batchID)
		if err == nil {
			return s.batchResult(ctx, batchID, in.SenderID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return docs.BulkSendResult{}, err
		}
	}

	// Every requested id must resolve to a caller-owned document.
	resolved := make([]docs.Document, 0, len(in.DocumentIDs))
	for _, id := range in.DocumentIDs {
		doc, err := s.GetDocument(ctx, id, in.SenderID)
		if err != nil {
			return docs.BulkSendResult{}, docs.ErrNotFound
		}
		resolved = append(resolved, doc)
	}

	now := time.Now().UTC()
	batchID := ids.WithPrefix("batch")
	groupID := ids.WithPrefix("grp")
	email := strings.ToLower(strings.TrimSpace(in.Recipient.Email))
	name := strings.TrimSpace(in.Recipient.Name)

	requests := make([]docs.SignatureRequest, 0, len(resolved))
	for _, doc := range resolved {
		req := docs.SignatureRequest{
			ID:              ids.WithPrefix("sig"),
			UniqueID:        captoken.New().String(),
			DocumentID:      doc.ID,
			DocumentTitle:   doc.Title,
			SenderID:        in.SenderID,
			RecipientEmail:  email,
			RecipientName:   name,
			Message:         in.Message,
			Status:          docs.StatusPending,
			BulkSendBatchID: batchID,
			GroupID:         groupID,
			IsGroupSigning:  true,
			CreatedAt:       now,
		}
		if _, err := s.db.ExecContext(ctx, `
			insert into signature_requests(id, unique_id, document_id, document_title, sender_id,
				recipient_email, recipient_name, message, status, bulk_send_batch_id, group_id, is_group_signing)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,true)
		`, req.ID, req.UniqueID, req.DocumentID, req.DocumentTitle, req.SenderID,
			req.RecipientEmail, req.RecipientName, req.Message, req.Status, batchID, groupID); err != nil {
			return docs.BulkSendResult{}, err
		}
		requests = append(requests, req)
	}

	batch := docs.BulkSend{
		BatchID:        batchID,
		GroupID:        groupID,
		SenderID:       in.SenderID,
		RecipientEmail: email,
		RecipientName:  name,
		Message:        in.Message,
		DocumentCount:  len(requests),
		SentCount:      len(requests),
		PendingCount:   len(requests),
		Status:         docs.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.db.ExecContext(ctx, `
		insert into bulk_sends(batch_id, group_id, sender_id, recipient_email, recipient_name, message,
			document_count, sent_count, failed_count, pending_count, status, idempotency_key)
		values ($1,$2,$3,$4,$5,$6,$7,$8,0,$9,$10,nullif($11,''))
	`, batchID, groupID, in.SenderID, email, name, in.Message,
		batch.DocumentCount, batch.SentCount, batch.PendingCount, batch.Status, idemKey); err != nil {
		return docs.BulkSendResult{}, err
	}

	return docs.BulkSendResult{BulkSend: batch, SignatureRequests: requests}, nil
}

func (s *DocStore) batchResult(ctx context.Context, batchID, ownerID string) (docs.BulkSendResult, error) {
	batch, err := s.GetBulkSend(ctx, batchID, ownerID)
	if err != nil {
		return docs.BulkSendResult{}, err
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+signatureRequestColumns+` from signature_requests where bulk_send_batch_id=$1 order by created_at asc`,
		batchID)
	if err != nil {
		return docs.BulkSendResult{}, err
	}
	defer rows.Close()

	res := docs.BulkSendResult{BulkSend: batch}
	for rows.Next() {
		req, err := scanSignatureRequest(rows)
		if err != nil {
			return docs.BulkSendResult{}, err
		}
		res.SignatureRequests = append(res.SignatureRequests, req)
	}
	return res, rows.Err()
}

const bulkSendColumns = `batch_id, group_id, sender_id, recipient_email, recipient_name, message,
	document_count, sent_count, failed_count, pending_count, status, created_at, updated_at`

// GetBulkSend returns the stored counters verbatim, without re-deriving them
// from signature-request state.
func (s *DocStore) GetBulkSend(ctx context.Context, batchID, ownerID string) (docs.BulkSend, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+bulkSendColumns+` from bulk_sends where batch_id=$1 and sender_id=$2`, batchID, ownerID)
	return scanBulkSend(row)
}

func (s *DocStore) RecomputeBulkSend(ctx context.Context, batchID, ownerID string) (docs.BulkSend, error) {
	row := s.db.QueryRowContext(ctx, `
		with live as (
			select
				count(*) filter (where status in ('pending','viewed')) as pending,
				count(*) filter (where status = 'failed') as failed,
				count(*) as total
			from signature_requests where bulk_send_batch_id=$1
		)
		update bulk_sends b
		set pending_count = live.pending,
		    failed_count = live.failed,
		    sent_count = live.total,
		    status = case when live.pending = 0 and live.failed = 0 then 'completed' else b.status end,
		    updated_at = now()
		from live
		where b.batch_id=$1 and b.sender_id=$2
		returning `+prefixedBulkSendColumns("b"), batchID, ownerID)
	return scanBulkSend(row)
}

const signatureRequestColumns = `id, unique_id, document_id, document_title, sender_id, recipient_email,
	recipient_name, message, status, bulk_send_batch_id, group_id, is_group_signing, viewed_at, signed_at, created_at`

func (s *DocStore) SignatureRequestByToken(ctx context.Context, uniqueID string) (docs.SignatureRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+signatureRequestColumns+` from signature_requests where unique_id=$1`, uniqueID)
	return scanSignatureRequest(row)
}

func (s *DocStore) MarkViewed(ctx context.Context, uniqueID string) (docs.SignatureRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		update signature_requests
		set status = case when status = 'pending' then 'viewed' else status end,
		    viewed_at = coalesce(viewed_at, now())
		where unique_id=$1
		returning `+signatureRequestColumns, uniqueID)
	return scanSignatureRequest(row)
}

func (s *DocStore) MarkSigned(ctx context.Context, uniqueID string) (docs.SignatureRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		update signature_requests
		set status = case when status in ('signed','completed') then status else 'signed' end,
		    signed_at = coalesce(signed_at, now()),
		    viewed_at = coalesce(viewed_at, now())
		where unique_id=$1
		returning `+signatureRequestColumns, uniqueID)
	return scanSignatureRequest(row)
}

func (s *DocStore) CreateEnvelope(ctx context.Context, env docs.Envelope) (docs.Envelope, error) {
	if env.UserID == "" || len(env.DocumentIDs) == 0 || len(env.Recipients) == 0 {
		return docs.Envelope{}, docs.ErrInvalidInput
	}
	if env.ID == "" {
		env.ID = ids.WithPrefix("env")
	}
	env.Status = docs.StatusPending
	env.CreatedAt = time.Now().UTC()
	for i := range env.Recipients {
		env.Recipients[i].RecipientIndex = i
		env.Recipients[i].Status = docs.StatusPending
		if env.Recipients[i].UniqueID == "" {
			env.Recipients[i].UniqueID = captoken.New().String()
		}
	}

	docIDs, _ := json.Marshal(env.DocumentIDs)
	fields, _ := json.Marshal(env.SignatureFields)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return docs.Envelope{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into envelopes(id, user_id, title, document_ids, signature_fields, expiry_date, status)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, env.ID, env.UserID, env.Title, docIDs, fields, nullTime(env.ExpiryDate), env.Status); err != nil {
		return docs.Envelope{}, err
	}
	for _, rcp := range env.Recipients {
		if _, err := tx.ExecContext(ctx, `
			insert into envelope_recipients(unique_id, envelope_id, email, name, recipient_index, status)
			values ($1,$2,$3,$4,$5,$6)
		`, rcp.UniqueID, env.ID, strings.ToLower(strings.TrimSpace(rcp.Email)), rcp.Name, rcp.RecipientIndex, rcp.Status); err != nil {
			return docs.Envelope{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return docs.Envelope{}, err
	}
	return env, nil
}

func (s *DocStore) EnvelopeByToken(ctx context.Context, uniqueID string) (docs.Envelope, docs.EnvelopeRecipient, error) {
	var (
		rcp   docs.EnvelopeRecipient
		envID string
	)
	err := s.db.QueryRowContext(ctx, `
		select envelope_id, unique_id, email, name, recipient_index, status
		from envelope_recipients where unique_id=$1
	`, uniqueID).Scan(&envID, &rcp.UniqueID, &rcp.Email, &rcp.Name, &rcp.RecipientIndex, &rcp.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return docs.Envelope{}, docs.EnvelopeRecipient{}, docs.ErrNotFound
	}
	if err != nil {
		return docs.Envelope{}, docs.EnvelopeRecipient{}, err
	}

	var (
		env    docs.Envelope
		docIDs []byte
		fields []byte
		expiry sql.NullTime
	)
	err = s.db.QueryRowContext(ctx, `
		select id, user_id, title, document_ids, signature_fields, expiry_date, status, created_at
		from envelopes where id=$1
	`, envID).Scan(&env.ID, &env.UserID, &env.Title, &docIDs, &fields, &expiry, &env.Status, &env.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return docs.Envelope{}, docs.EnvelopeRecipient{}, docs.ErrNotFound
	}
	if err != nil {
		return docs.Envelope{}, docs.EnvelopeRecipient{}, err
	}
	_ = json.Unmarshal(docIDs, &env.DocumentIDs)
	_ = json.Unmarshal(fields, &env.SignatureFields)
	if expiry.Valid {
		env.ExpiryDate = expiry.Time
	}
	env.Recipients = []docs.EnvelopeRecipient{rcp}
	return env, rcp, nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (docs.Document, error) {
	var (
		doc        docs.Document
		archivedAt sql.NullTime
		expiresAt  sql.NullTime
		analytics  []byte
	)
	err := row.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.FileURL, &doc.SignedFileURL,
		&doc.Archived, &archivedAt, &expiresAt, &analytics, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return docs.Document{}, docs.ErrNotFound
	}
	if err != nil {
		return docs.Document{}, err
	}
	if archivedAt.Valid {
		t := archivedAt.Time
		doc.ArchivedAt = &t
	}
	if expiresAt.Valid {
		doc.ExpiresAt = expiresAt.Time
	}
	_ = json.Unmarshal(analytics, &doc.Analytics)
	return doc, nil
}

func scanSignatureRequest(row rowScanner) (docs.SignatureRequest, error) {
	var (
		req      docs.SignatureRequest
		batchID  sql.NullString
		groupID  sql.NullString
		viewedAt sql.NullTime
		signedAt sql.NullTime
	)
	err := row.Scan(&req.ID, &req.UniqueID, &req.DocumentID, &req.DocumentTitle, &req.SenderID,
		&req.RecipientEmail, &req.RecipientName, &req.Message, &req.Status,
		&batchID, &groupID, &req.IsGroupSigning, &viewedAt, &signedAt, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return docs.SignatureRequest{}, docs.ErrNotFound
	}
	if err != nil {
		return docs.SignatureRequest{}, err
	}
	req.BulkSendBatchID = batchID.String
	req.GroupID = groupID.String
	if viewedAt.Valid {
		t := viewedAt.Time
		req.ViewedAt = &t
	}
	if signedAt.Valid {
		t := signedAt.Time
		req.SignedAt = &t
	}
	return req, nil
}

func scanBulkSend(row rowScanner) (docs.BulkSend, error) {
	var b docs.BulkSend
	err := row.Scan(&b.BatchID, &b.GroupID, &b.SenderID, &b.RecipientEmail, &b.RecipientName, &b.Message,
		&b.DocumentCount, &b.SentCount, &b.FailedCount, &b.PendingCount, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return docs.BulkSend{}, docs.ErrNotFound
	}
	if err != nil {
		return docs.BulkSend{}, err
	}
	return b, nil
}

func prefixedBulkSendColumns(alias string) string {
	cols := strings.Split(bulkSendColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
