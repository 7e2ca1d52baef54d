package documents

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"studyai-backend/internal/shared/storage/object"
	localstore "studyai-backend/internal/shared/storage/object/local"
)

type recordingStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []string
	deletes []string
	putErr  error
	delErr  error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{objects: map[string][]byte{}}
}

func (s *recordingStore) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, key)
	if s.putErr != nil {
		return s.putErr
	}
	if _, ok := s.objects[key]; ok {
		return object.ErrObjectExists
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *recordingStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, object.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *recordingStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, key)
	if s.delErr != nil {
		return s.delErr
	}
	delete(s.objects, key)
	return nil
}

type failingCreateRepo struct {
	*MemoryRepo
}

func (failingCreateRepo) Create(ctx context.Context, doc Document) error {
	return errors.New("insert failed")
}

func newTestService(store object.ObjectStore, repo Repo) *Service {
	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	var n int
	return &Service{
		Store: store,
		Repo:  repo,
		Now: func() time.Time {
			n++
			return base.Add(time.Duration(n) * time.Second)
		},
	}
}

func textInput(name, body, category string) UploadInput {
	return UploadInput{
		FileName:    name,
		ContentType: "text/plain",
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
		Category:    category,
	}
}

func TestUploadStoresObjectAndMetadata(t *testing.T) {
	store := localstore.New(t.TempDir())
	svc := newTestService(store, NewMemoryRepo())
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "user-a", textInput("notes1.txt", "Mitochondria produce ATP.", "notes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.Category != CategoryNotes {
		t.Fatalf("expected notes category, got %q", doc.Category)
	}
	if doc.ExtractedText != "Mitochondria produce ATP." {
		t.Fatalf("unexpected extracted text %q", doc.ExtractedText)
	}
	if !strings.HasSuffix(doc.StorageKey, ".txt") {
		t.Fatalf("expected .txt key, got %q", doc.StorageKey)
	}

	rc, err := store.Open(ctx, doc.StorageKey)
	if err != nil {
		t.Fatalf("Open stored object: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "Mitochondria produce ATP." {
		t.Fatalf("stored bytes differ: %q", data)
	}
}

func TestUploadStoresLegacyEncodedTextAsUTF8(t *testing.T) {
	svc := newTestService(newRecordingStore(), NewMemoryRepo())
	doc, err := svc.Upload(context.Background(), "user-a", UploadInput{
		FileName:    "caf\xe9\x00.txt",
		ContentType: "text/plain",
		Size:        15,
		Body:        strings.NewReader("caf\xe9 notes\x00 end"),
		Category:    "pyq",
		PYQ:         PYQMetadata{Subject: "OS\x00\xff"},
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	for field, v := range map[string]string{
		"text":    doc.ExtractedText,
		"name":    doc.FileName,
		"subject": doc.PYQ.Subject,
		"type":    doc.MimeType,
	} {
		if !utf8.ValidString(v) || strings.ContainsRune(v, 0) {
			t.Fatalf("%s %q cannot be stored in a TEXT column", field, v)
		}
	}
	if doc.ExtractedText != "caf\uFFFD notes end" {
		t.Fatalf("unexpected extracted text %q", doc.ExtractedText)
	}
}

func TestUploadKeepsDeclaredMediaType(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		wantType string
		wantText string
	}{
		{name: "declared differs from extension", declared: "application/pdf", wantType: "application/pdf", wantText: "body"},
		{name: "declared with parameters", declared: "Text/Plain; charset=utf-8", wantType: "text/plain", wantText: "body"},
		{name: "nothing declared", declared: "", wantType: "text/plain", wantText: "body"},
		{name: "generic binary", declared: "application/octet-stream", wantType: "text/plain", wantText: "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newRecordingStore()
			svc := newTestService(store, NewMemoryRepo())
			doc, err := svc.Upload(context.Background(), "user-a", UploadInput{
				FileName: "paper.txt", ContentType: tt.declared, Size: 4, Body: strings.NewReader("body"),
			})
			if err != nil {
				t.Fatalf("Upload: %v", err)
			}
			if doc.MimeType != tt.wantType {
				t.Fatalf("expected type %q, got %q", tt.wantType, doc.MimeType)
			}
			if doc.ExtractedText != tt.wantText {
				t.Fatalf("extraction should follow the extension, got %q", doc.ExtractedText)
			}
		})
	}
}

func TestUploadCoercesUnknownCategory(t *testing.T) {
	svc := newTestService(newRecordingStore(), NewMemoryRepo())
	doc, err := svc.Upload(context.Background(), "user-a", textInput("a.txt", "x", "homework"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.Category != CategoryGeneral {
		t.Fatalf("expected general, got %q", doc.Category)
	}
}

func TestUploadValidationHappensBeforeAnyWrite(t *testing.T) {
	tests := []struct {
		name string
		in   UploadInput
	}{
		{
			name: "declared size over limit",
			in:   UploadInput{FileName: "big.pdf", ContentType: "application/pdf", Size: MaxFileSize + 1, Body: strings.NewReader("x")},
		},
		{
			name: "actual size over limit",
			in:   UploadInput{FileName: "big.txt", ContentType: "text/plain", Size: -1, Body: io.LimitReader(zeroReader{}, MaxFileSize+1)},
		},
		{
			name: "disallowed extension",
			in:   textInput("malware.exe", "MZ", "general"),
		},
		{
			name: "extensionless with unknown type",
			in:   UploadInput{FileName: "README", ContentType: "application/octet-stream", Size: 1, Body: strings.NewReader("x")},
		},
		{
			name: "empty name",
			in:   textInput("  ", "x", "general"),
		},
		{
			name: "pyq semester out of range",
			in: UploadInput{FileName: "dbms.pdf", ContentType: "application/pdf", Size: 1, Body: strings.NewReader("x"),
				Category: "pyq", PYQ: PYQMetadata{Subject: "DBMS", Semester: 13, AcademicYear: "2023-2024"}},
		},
		{
			name: "pyq bad academic year",
			in: UploadInput{FileName: "dbms.pdf", ContentType: "application/pdf", Size: 1, Body: strings.NewReader("x"),
				Category: "pyq", PYQ: PYQMetadata{Subject: "DBMS", Semester: 3, AcademicYear: "2023/24"}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			store := newRecordingStore()
			repo := NewMemoryRepo()
			svc := newTestService(store, repo)

			_, err := svc.Upload(context.Background(), "user-a", tt.in)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if len(store.puts) != 0 {
				t.Fatalf("expected no storage writes, got %v", store.puts)
			}
			docs, _ := repo.ListByOwner(context.Background(), "user-a", "")
			if len(docs) != 0 {
				t.Fatalf("expected no metadata rows, got %d", len(docs))
			}
		})
	}
}

func TestUploadAcceptsExtensionlessAllowedType(t *testing.T) {
	svc := newTestService(newRecordingStore(), NewMemoryRepo())
	doc, err := svc.Upload(context.Background(), "user-a", UploadInput{
		FileName: "scan", ContentType: "image/png", Size: 3, Body: strings.NewReader("png"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasSuffix(doc.StorageKey, ".png") {
		t.Fatalf("expected .png key, got %q", doc.StorageKey)
	}
	if doc.ExtractedText != "[Image: scan] - Visual content will be analyzed by AI" {
		t.Fatalf("unexpected placeholder %q", doc.ExtractedText)
	}
}

func TestUploadKeepsPYQMetadataOnlyForPYQ(t *testing.T) {
	svc := newTestService(newRecordingStore(), NewMemoryRepo())
	meta := PYQMetadata{Subject: "DBMS", Semester: 5, AcademicYear: "2022-2023"}

	pyqDoc, err := svc.Upload(context.Background(), "user-a", UploadInput{
		FileName: "dbms.pdf", ContentType: "application/pdf", Size: 1, Body: strings.NewReader("x"), Category: "pyq", PYQ: meta,
	})
	if err != nil {
		t.Fatalf("Upload pyq: %v", err)
	}
	if pyqDoc.PYQ != meta {
		t.Fatalf("expected pyq metadata kept, got %+v", pyqDoc.PYQ)
	}

	notesDoc, err := svc.Upload(context.Background(), "user-a", UploadInput{
		FileName: "os.pdf", ContentType: "application/pdf", Size: 1, Body: strings.NewReader("x"), Category: "notes", PYQ: meta,
	})
	if err != nil {
		t.Fatalf("Upload notes: %v", err)
	}
	if notesDoc.PYQ != (PYQMetadata{}) {
		t.Fatalf("expected pyq metadata dropped, got %+v", notesDoc.PYQ)
	}
}

func TestUploadTruncatesLongFileName(t *testing.T) {
	svc := newTestService(newRecordingStore(), NewMemoryRepo())
	name := strings.Repeat("n", 300) + ".txt"
	doc, err := svc.Upload(context.Background(), "user-a", textInput(name, "x", "notes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len([]rune(doc.FileName)) != MaxFileNameLen {
		t.Fatalf("expected %d chars, got %d", MaxFileNameLen, len([]rune(doc.FileName)))
	}
}

func TestUploadCompensatesWhenMetadataInsertFails(t *testing.T) {
	store := newRecordingStore()
	svc := newTestService(store, failingCreateRepo{NewMemoryRepo()})

	_, err := svc.Upload(context.Background(), "user-a", textInput("notes.txt", "hello", "notes"))
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if len(store.puts) != 1 || len(store.deletes) != 1 || store.puts[0] != store.deletes[0] {
		t.Fatalf("expected the stored key to be deleted, puts=%v deletes=%v", store.puts, store.deletes)
	}
	if len(store.objects) != 0 {
		t.Fatalf("expected no remaining objects, got %d", len(store.objects))
	}
}

func TestUploadCompensationFailureStillReportsPersistence(t *testing.T) {
	store := newRecordingStore()
	store.delErr = errors.New("bucket unreachable")
	svc := newTestService(store, failingCreateRepo{NewMemoryRepo()})

	_, err := svc.Upload(context.Background(), "user-a", textInput("notes.txt", "hello", "notes"))
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestUploadStorageFailure(t *testing.T) {
	store := newRecordingStore()
	store.putErr = object.ErrObjectExists
	repo := NewMemoryRepo()
	svc := newTestService(store, repo)

	_, err := svc.Upload(context.Background(), "user-a", textInput("notes.txt", "hello", "notes"))
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if !errors.Is(err, object.ErrObjectExists) {
		t.Fatalf("expected underlying collision to be kept, got %v", err)
	}
	docs, _ := repo.ListByOwner(context.Background(), "user-a", "")
	if len(docs) != 0 {
		t.Fatalf("expected no rows after storage failure")
	}
}

func TestListIsScopedToOwnerAndCategory(t *testing.T) {
	svc := newTestService(newRecordingStore(), NewMemoryRepo())
	ctx := context.Background()

	mustUpload(t, svc, "user-a", textInput("a1.txt", "one", "notes"))
	mustUpload(t, svc, "user-a", textInput("a2.txt", "two", "notes"))
	mustUpload(t, svc, "user-a", textInput("a3.txt", "three", "research"))
	mustUpload(t, svc, "user-b", textInput("b1.txt", "other", "notes"))

	docs, err := svc.List(ctx, "user-a", CategoryNotes)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 notes for user-a, got %d", len(docs))
	}
	if docs[0].FileName != "a2.txt" || docs[1].FileName != "a1.txt" {
		t.Fatalf("expected newest first, got %s, %s", docs[0].FileName, docs[1].FileName)
	}
	for _, d := range docs {
		if d.OwnerID != "user-a" || d.Category != CategoryNotes {
			t.Fatalf("leaked document %+v", d)
		}
	}

	all, err := svc.ListAll(ctx, "user-a")
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 documents across categories, got %d", len(all))
	}

	empty, err := svc.List(ctx, "user-c", CategoryNotes)
	if err != nil {
		t.Fatalf("List empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty list, got %d", len(empty))
	}
}

func TestDeleteForeignDocumentIsNotFound(t *testing.T) {
	store := newRecordingStore()
	repo := NewMemoryRepo()
	svc := newTestService(store, repo)
	ctx := context.Background()

	doc := mustUpload(t, svc, "user-a", textInput("a.txt", "mine", "notes"))

	if err := svc.Delete(ctx, "user-b", doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(store.deletes) != 0 {
		t.Fatalf("expected no storage deletes, got %v", store.deletes)
	}
	if _, err := repo.GetByID(ctx, "user-a", doc.ID); err != nil {
		t.Fatalf("expected row to survive: %v", err)
	}
}

func TestDeleteRemovesObjectThenRow(t *testing.T) {
	store := newRecordingStore()
	repo := NewMemoryRepo()
	svc := newTestService(store, repo)
	ctx := context.Background()

	doc := mustUpload(t, svc, "user-a", textInput("a.txt", "mine", "notes"))
	if err := svc.Delete(ctx, "user-a", doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(store.deletes) != 1 || store.deletes[0] != doc.StorageKey {
		t.Fatalf("expected object delete for %s, got %v", doc.StorageKey, store.deletes)
	}
	if _, err := repo.GetByID(ctx, "user-a", doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected row gone, got %v", err)
	}
	if err := svc.Delete(ctx, "user-a", doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected second delete to be ErrNotFound, got %v", err)
	}
}

func TestDeleteStorageFailureKeepsRow(t *testing.T) {
	store := newRecordingStore()
	repo := NewMemoryRepo()
	svc := newTestService(store, repo)
	ctx := context.Background()

	doc := mustUpload(t, svc, "user-a", textInput("a.txt", "mine", "notes"))
	store.delErr = errors.New("timeout")

	if err := svc.Delete(ctx, "user-a", doc.ID); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if _, err := repo.GetByID(ctx, "user-a", doc.ID); err != nil {
		t.Fatalf("expected row to survive a storage failure: %v", err)
	}
}

func TestDeleteRejectsMalformedID(t *testing.T) {
	svc := newTestService(newRecordingStore(), NewMemoryRepo())
	if err := svc.Delete(context.Background(), "user-a", "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUploadBatchEmitsProgress(t *testing.T) {
	svc := newTestService(newRecordingStore(), NewMemoryRepo())
	inputs := []UploadInput{
		textInput("ok1.txt", "one", "notes"),
		textInput("bad.exe", "two", "notes"),
		textInput("ok2.txt", "three", "notes"),
	}

	var got []UploadEvent
	for ev := range svc.UploadBatch(context.Background(), "user-a", inputs) {
		got = append(got, ev)
	}

	want := []struct {
		index int
		kind  UploadEventKind
	}{
		{0, UploadStarted}, {0, UploadCompleted},
		{1, UploadStarted}, {1, UploadFailed},
		{2, UploadStarted}, {2, UploadCompleted},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Index != w.index || got[i].Kind != w.kind {
			t.Fatalf("event %d: got (%d, %s), want (%d, %s)", i, got[i].Index, got[i].Kind, w.index, w.kind)
		}
	}
	if got[1].Document == nil || got[1].Document.FileName != "ok1.txt" {
		t.Fatalf("expected completed event to carry the document")
	}
	if !errors.Is(got[3].Err, ErrInvalidInput) {
		t.Fatalf("expected validation error on failed event, got %v", got[3].Err)
	}
}

func TestUploadBatchCancelledContext(t *testing.T) {
	svc := newTestService(newRecordingStore(), NewMemoryRepo())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var failed int
	for ev := range svc.UploadBatch(ctx, "user-a", []UploadInput{textInput("a.txt", "x", "notes")}) {
		if ev.Kind == UploadFailed {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("expected the cancelled upload to fail, got %d failures", failed)
	}
}

func mustUpload(t *testing.T, svc *Service, owner string, in UploadInput) Document {
	t.Helper()
	doc, err := svc.Upload(context.Background(), owner, in)
	if err != nil {
		t.Fatalf("Upload %s: %v", in.FileName, err)
	}
	return doc
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'a'
	}
	return len(p), nil
}
