package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/chat-dispatch/internal/catalog"
	"github.com/fairyhunter13/chat-dispatch/internal/domain"
	"github.com/fairyhunter13/chat-dispatch/internal/domain/mocks"
	"github.com/fairyhunter13/chat-dispatch/internal/usecase"
)

type recordingInvalidator struct{ ids []string }

func (r *recordingInvalidator) Invalidate(_ context.Context, id string) (int, error) {
	r.ids = append(r.ids, id)
	return 2, nil
}

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n%%EOF\n")

func newUploadSvc() (usecase.UploadService, *mocks.MockConversationRepository, *mocks.MockFileRepository, *mocks.MockTextExtractor, *recordingInvalidator) {
	convs := &mocks.MockConversationRepository{}
	files := &mocks.MockFileRepository{}
	ext := &mocks.MockTextExtractor{}
	inv := &recordingInvalidator{}
	return usecase.NewUploadService(convs, files, ext, catalog.Default(), inv), convs, files, ext, inv
}

func TestUpload_StoresAndInvalidates(t *testing.T) {
	t.Parallel()
	svc, convs, files, ext, inv := newUploadSvc()
	convs.On("Get", mock.Anything, "c1").Return(domain.Conversation{ID: "c1"}, nil)
	files.On("ListByConversation", mock.Anything, "c1").Return([]domain.StoredFile{{Type: domain.FileTypePDF}}, nil)
	ext.On("ExtractBytes", mock.Anything, "paper.pdf", pdfBytes).Return("  extracted\x00 text ", nil)
	files.On("Create", mock.Anything, mock.MatchedBy(func(f domain.StoredFile) bool {
		return f.Type == domain.FileTypePDF && f.Text == "extracted text" && f.MIME == "application/pdf" && f.ConversationID == "c1"
	})).Return("f1", nil)

	f, adm, err := svc.Upload(context.Background(), usecase.UploadInput{ConversationID: "c1", Filename: "paper.pdf", Data: pdfBytes, Model: "auto"})
	require.NoError(t, err)
	assert.Equal(t, "f1", f.ID)
	assert.True(t, adm.Valid)
	assert.Equal(t, 2, adm.RemainingSlots)
	assert.Equal(t, []string{"c1"}, inv.ids)
	files.AssertExpectations(t)
}

func TestUpload_RejectedByAdmission(t *testing.T) {
	t.Parallel()
	svc, convs, files, ext, inv := newUploadSvc()
	convs.On("Get", mock.Anything, "c1").Return(domain.Conversation{ID: "c1"}, nil)
	files.On("ListByConversation", mock.Anything, "c1").Return([]domain.StoredFile{{Type: domain.FileTypeDOCX}}, nil)

	// A coding model sits in the general tier: one file per conversation.
	_, adm, err := svc.Upload(context.Background(), usecase.UploadInput{ConversationID: "c1", Filename: "paper.pdf", Data: pdfBytes, Model: "provider-8/gpt-oss-120b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidationRejected)
	assert.Equal(t, usecase.ReasonTotalExceeded, adm.Reason)
	ext.AssertNotCalled(t, "ExtractBytes", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, inv.ids)
}

func TestUpload_FallsBackToExtension(t *testing.T) {
	t.Parallel()
	ft, _, err := usecase.DetectType("notes.docx", []byte("plain words"))
	require.NoError(t, err)
	assert.Equal(t, domain.FileTypeDOCX, ft)

	_, _, err = usecase.DetectType("notes.txt", []byte("plain words"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestUpload_ExtractionFailure(t *testing.T) {
	t.Parallel()
	svc, convs, files, ext, _ := newUploadSvc()
	convs.On("Get", mock.Anything, "c1").Return(domain.Conversation{ID: "c1"}, nil)
	files.On("ListByConversation", mock.Anything, "c1").Return([]domain.StoredFile(nil), nil)
	ext.On("ExtractBytes", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("tika down"))

	_, _, err := svc.Upload(context.Background(), usecase.UploadInput{ConversationID: "c1", Filename: "paper.pdf", Data: pdfBytes})
	require.Error(t, err)
	files.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpload_DeleteInvalidates(t *testing.T) {
	t.Parallel()
	svc, _, files, _, inv := newUploadSvc()
	files.On("Get", mock.Anything, "f1").Return(domain.StoredFile{ID: "f1", ConversationID: "c7"}, nil)
	files.On("Delete", mock.Anything, "f1").Return(nil)

	require.NoError(t, svc.Delete(context.Background(), "f1"))
	assert.Equal(t, []string{"c7"}, inv.ids)

	files.On("Get", mock.Anything, "nope").Return(domain.StoredFile{}, domain.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), "nope"), domain.ErrNotFound)
}

func TestUpload_CategoryForModel(t *testing.T) {
	t.Parallel()
	svc, _, _, _, _ := newUploadSvc()
	assert.Equal(t, catalog.PDFAnalysis, svc.CategoryForModel("auto"))
	assert.Equal(t, catalog.PDFAnalysis, svc.CategoryForModel(""))
	assert.Equal(t, catalog.Coding, svc.CategoryForModel("provider-8/gpt-oss-20b"))
	assert.Equal(t, catalog.GeneralChat, svc.CategoryForModel("someone/unknown"))
}

// memFiles is a FileRepository whose counts reflect earlier creates.
type memFiles struct {
	mu    sync.Mutex
	files []domain.StoredFile
}

func (m *memFiles) Create(_ domain.Context, f domain.StoredFile) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, f)
	return f.Filename, nil
}

func (m *memFiles) Get(_ domain.Context, _ string) (domain.StoredFile, error) {
	return domain.StoredFile{}, domain.ErrNotFound
}

func (m *memFiles) ListByConversation(_ domain.Context, conversationID string) ([]domain.StoredFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StoredFile
	for _, f := range m.files {
		if f.ConversationID == conversationID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memFiles) Delete(_ domain.Context, _ string) error { return nil }

func TestUpload_ConcurrentUploadsRespectCeiling(t *testing.T) {
	t.Parallel()
	convs := &mocks.MockConversationRepository{}
	convs.On("Get", mock.Anything, "c1").Return(domain.Conversation{ID: "c1"}, nil)
	ext := &mocks.MockTextExtractor{}
	// Slow extraction widens the gap between counting and inserting.
	ext.On("ExtractBytes", mock.Anything, mock.Anything, mock.Anything).Return("text", nil).After(20 * time.Millisecond)
	files := &memFiles{}
	svc := usecase.NewUploadService(convs, files, ext, catalog.Default(), &recordingInvalidator{})

	const uploads = 5
	errs := make([]error, uploads)
	var wg sync.WaitGroup
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.Upload(context.Background(), usecase.UploadInput{ConversationID: "c1", Filename: "paper.pdf", Data: pdfBytes, Model: "auto"})
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		if err == nil {
			admitted++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrValidationRejected)
	}
	assert.Equal(t, 3, admitted)
	stored, _ := files.ListByConversation(context.Background(), "c1")
	assert.Len(t, stored, 3)
}
