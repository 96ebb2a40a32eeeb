package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/docs"
)

func newMockDocStore(t *testing.T) (*DocStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db).Docs(), mock
}

func documentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "title", "file_url", "signed_file_url", "archived",
		"archived_at", "expires_at", "analytics", "created_at", "updated_at",
	})
}

func TestGetDocumentMapsRow(t *testing.T) {
	store, mock := newMockDocStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`select (.+) from documents where id=\$1 and user_id=\$2`).
		WithArgs("doc1", "u1").
		WillReturnRows(documentRows().AddRow(
			"doc1", "u1", "Contract", "https://files/x.pdf", "", false,
			nil, nil, []byte(`{"score":80}`), now, now,
		))

	doc, err := store.GetDocument(context.Background(), "doc1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Contract" || doc.Analytics.Score != 80 {
		t.Fatalf("mapping wrong: %+v", doc)
	}
	if doc.ArchivedAt != nil || !doc.ExpiresAt.IsZero() {
		t.Fatalf("null times not mapped: %+v", doc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	store, mock := newMockDocStore(t)

	mock.ExpectQuery(`select (.+) from documents where id=\$1 and user_id=\$2`).
		WithArgs("doc1", "intruder").
		WillReturnRows(documentRows())

	if _, err := store.GetDocument(context.Background(), "doc1", "intruder"); !errors.Is(err, docs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRestoreDocumentSingleStatement(t *testing.T) {
	store, mock := newMockDocStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`update documents\s+set archived = false`).
		WithArgs("doc1", "u1").
		WillReturnRows(documentRows().AddRow(
			"doc1", "u1", "Contract", "", "", false, nil, nil, []byte(`{}`), now, now,
		))

	doc, err := store.RestoreDocument(context.Background(), "doc1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Archived || doc.ArchivedAt != nil {
		t.Fatalf("restore mapping wrong: %+v", doc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

// The fan-out is a sequence of independent statements with no transaction;
// the mock would reject an unexpected Begin.
func TestCreateBulkSendSeparateInserts(t *testing.T) {
	store, mock := newMockDocStore(t)
	now := time.Now().UTC()

	for _, id := range []string{"doc1", "doc2"} {
		mock.ExpectQuery(`select (.+) from documents where id=\$1 and user_id=\$2`).
			WithArgs(id, "u1").
			WillReturnRows(documentRows().AddRow(
				id, "u1", "Title "+id, "", "", false, nil, nil, []byte(`{}`), now, now,
			))
	}
	mock.ExpectExec(`insert into signature_requests`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into signature_requests`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into bulk_sends`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := store.CreateBulkSend(context.Background(), docs.BulkSendInput{
		SenderID:    "u1",
		DocumentIDs: []string{"doc1", "doc2"},
		Recipient:   docs.Recipient{Email: "Signer@Example.com", Name: "Signer"},
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.SignatureRequests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(res.SignatureRequests))
	}
	if res.BulkSend.PendingCount != 2 || res.BulkSend.RecipientEmail != "signer@example.com" {
		t.Fatalf("batch wrong: %+v", res.BulkSend)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateBulkSendIdempotentReplay(t *testing.T) {
	store, mock := newMockDocStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`select batch_id from bulk_sends where sender_id=\$1 and idempotency_key=\$2`).
		WithArgs("u1", "key-1").
		WillReturnRows(sqlmock.NewRows([]string{"batch_id"}).AddRow("batch_9"))
	mock.ExpectQuery(`select (.+) from bulk_sends where batch_id=\$1 and sender_id=\$2`).
		WithArgs("batch_9", "u1").
		WillReturnRows(sqlmock.NewRows([]string{
			"batch_id", "group_id", "sender_id", "recipient_email", "recipient_name", "message",
			"document_count", "sent_count", "failed_count", "pending_count", "status", "created_at", "updated_at",
		}).AddRow("batch_9", "grp_9", "u1", "signer@example.com", "Signer", "", 2, 2, 0, 2, "pending", now, now))
	mock.ExpectQuery(`select (.+) from signature_requests where bulk_send_batch_id=\$1`).
		WithArgs("batch_9").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "unique_id", "document_id", "document_title", "sender_id", "recipient_email",
			"recipient_name", "message", "status", "bulk_send_batch_id", "group_id", "is_group_signing",
			"viewed_at", "signed_at", "created_at",
		}).AddRow("sig_1", "tok-1", "doc1", "NDA", "u1", "signer@example.com",
			"Signer", "", "pending", "batch_9", "grp_9", true, nil, nil, now))

	res, err := store.CreateBulkSend(context.Background(), docs.BulkSendInput{
		SenderID:    "u1",
		DocumentIDs: []string{"doc1"},
		Recipient:   docs.Recipient{Email: "signer@example.com", Name: "Signer"},
	}, "key-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.BulkSend.BatchID != "batch_9" {
		t.Fatalf("replay should return the original batch: %+v", res.BulkSend)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRecomputeBulkSend(t *testing.T) {
	store, mock := newMockDocStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`with live as`).
		WithArgs("batch_9", "u1").
		WillReturnRows(sqlmock.NewRows([]string{
			"batch_id", "group_id", "sender_id", "recipient_email", "recipient_name", "message",
			"document_count", "sent_count", "failed_count", "pending_count", "status", "created_at", "updated_at",
		}).AddRow("batch_9", "grp_9", "u1", "signer@example.com", "Signer", "", 2, 2, 0, 0, "completed", now, now))

	b, err := store.RecomputeBulkSend(context.Background(), "batch_9", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if b.PendingCount != 0 || b.Status != docs.StatusCompleted {
		t.Fatalf("recompute mapping wrong: %+v", b)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkSignedUnknownToken(t *testing.T) {
	store, mock := newMockDocStore(t)

	mock.ExpectQuery(`update signature_requests`).
		WithArgs("ghost-token").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := store.MarkSigned(context.Background(), "ghost-token"); !errors.Is(err, docs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
