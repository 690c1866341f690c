package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/pgp-seed-backup/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockBlobStore implements interfaces.BlobStore for testing
type MockBlobStore struct {
	mock.Mock
	name string
}

func (m *MockBlobStore) Exists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockBlobStore) Download(ctx context.Context, name string) ([]byte, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockBlobStore) Upload(ctx context.Context, name string, data []byte) (interfaces.ContentID, error) {
	args := m.Called(ctx, name, data)
	return args.Get(0).(interfaces.ContentID), args.Error(1)
}

func (m *MockBlobStore) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockBlobStore) Name() string {
	return m.name
}

func (m *MockBlobStore) LocationURI() string {
	return "mock:" + m.name
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func assertMocks(t *testing.T, backends []interfaces.BlobStore) {
	t.Helper()
	for _, backend := range backends {
		backend.(*MockBlobStore).AssertExpectations(t)
	}
}

func TestMultiBlobStore_Available(t *testing.T) {
	tests := []struct {
		name     string
		backends []bool
		expected bool
	}{
		{name: "all backends available", backends: []bool{true, true, true}, expected: true},
		{name: "some backends available", backends: []bool{false, true, false}, expected: true},
		{name: "no backends available", backends: []bool{false, false, false}, expected: false},
		{name: "no backends", backends: []bool{}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var backends []interfaces.BlobStore
			for i, available := range tt.backends {
				m := &MockBlobStore{name: fmt.Sprintf("mock-A%x", i)}
				m.On("Available", mock.Anything).Return(available).Maybe()
				backends = append(backends, m)
			}

			multi := NewMultiBlobStore(backends, discardLogger())
			assert.Equal(t, tt.expected, multi.Available(context.Background()))
			assertMocks(t, backends)
		})
	}
}

func TestMultiBlobStore_Download(t *testing.T) {
	const name = "ABCDEF.backup"
	testData := []byte("test data")
	testErr := errors.New("test error")

	tests := []struct {
		name          string
		setupMocks    func() []interfaces.BlobStore
		expectedData  []byte
		expectedError error
		anyError      bool
	}{
		{
			name: "first backend successful",
			setupMocks: func() []interfaces.BlobStore {
				mock1 := &MockBlobStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Download", mock.Anything, name).Return(testData, nil)

				// Not consulted once the first backend answers.
				mock2 := &MockBlobStore{name: "mock-B"}

				return []interfaces.BlobStore{mock1, mock2}
			},
			expectedData: testData,
		},
		{
			name: "first backend fails, second succeeds",
			setupMocks: func() []interfaces.BlobStore {
				mock1 := &MockBlobStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Download", mock.Anything, name).Return(nil, testErr)

				mock2 := &MockBlobStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Download", mock.Anything, name).Return(testData, nil)

				return []interfaces.BlobStore{mock1, mock2}
			},
			expectedData: testData,
		},
		{
			name: "missing everywhere",
			setupMocks: func() []interfaces.BlobStore {
				mock1 := &MockBlobStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Download", mock.Anything, name).Return(nil, interfaces.ErrContentNotFound)

				mock2 := &MockBlobStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Download", mock.Anything, name).Return(nil, interfaces.ErrContentNotFound)

				return []interfaces.BlobStore{mock1, mock2}
			},
			expectedError: interfaces.ErrContentNotFound,
		},
		{
			name: "all backends fail",
			setupMocks: func() []interfaces.BlobStore {
				mock1 := &MockBlobStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Download", mock.Anything, name).Return(nil, testErr)

				mock2 := &MockBlobStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Download", mock.Anything, name).Return(nil, interfaces.ErrContentNotFound)

				return []interfaces.BlobStore{mock1, mock2}
			},
			expectedError: testErr,
		},
		{
			name: "no available backends",
			setupMocks: func() []interfaces.BlobStore {
				mock1 := &MockBlobStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)
				return []interfaces.BlobStore{mock1}
			},
			expectedError: interfaces.ErrBackendUnavailable,
		},
		{
			name: "unavailable backends are skipped",
			setupMocks: func() []interfaces.BlobStore {
				mock1 := &MockBlobStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)

				mock2 := &MockBlobStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Download", mock.Anything, name).Return(testData, nil)

				return []interfaces.BlobStore{mock1, mock2}
			},
			expectedData: testData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks()
			multi := NewMultiBlobStore(backends, discardLogger())

			data, err := multi.Download(context.Background(), name)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedData, data)
			assertMocks(t, backends)
		})
	}
}

func TestMultiBlobStore_Exists(t *testing.T) {
	const name = "ABCDEF.pub"
	testErr := errors.New("test error")

	t.Run("any backend holding the object", func(t *testing.T) {
		mock1 := &MockBlobStore{name: "mock-A"}
		mock1.On("Available", mock.Anything).Return(true)
		mock1.On("Exists", mock.Anything, name).Return(false, nil)
		mock2 := &MockBlobStore{name: "mock-B"}
		mock2.On("Available", mock.Anything).Return(true)
		mock2.On("Exists", mock.Anything, name).Return(true, nil)
		backends := []interfaces.BlobStore{mock1, mock2}

		ok, err := NewMultiBlobStore(backends, discardLogger()).Exists(context.Background(), name)
		assert.NoError(t, err)
		assert.True(t, ok)
		assertMocks(t, backends)
	})

	t.Run("one answer is enough", func(t *testing.T) {
		mock1 := &MockBlobStore{name: "mock-A"}
		mock1.On("Available", mock.Anything).Return(true)
		mock1.On("Exists", mock.Anything, name).Return(false, testErr)
		mock2 := &MockBlobStore{name: "mock-B"}
		mock2.On("Available", mock.Anything).Return(true)
		mock2.On("Exists", mock.Anything, name).Return(false, nil)
		backends := []interfaces.BlobStore{mock1, mock2}

		ok, err := NewMultiBlobStore(backends, discardLogger()).Exists(context.Background(), name)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("no backend answers", func(t *testing.T) {
		mock1 := &MockBlobStore{name: "mock-A"}
		mock1.On("Available", mock.Anything).Return(true)
		mock1.On("Exists", mock.Anything, name).Return(false, testErr)
		backends := []interfaces.BlobStore{mock1}

		_, err := NewMultiBlobStore(backends, discardLogger()).Exists(context.Background(), name)
		assert.ErrorIs(t, err, testErr)
	})
}

func TestMultiBlobStore_Upload(t *testing.T) {
	const name = "ABCDEF.backup"
	testID := interfaces.ContentID("bafkreitestcid")
	testData := []byte("test data")
	testErr := errors.New("test error")

	tests := []struct {
		name          string
		setupMocks    func() []interfaces.BlobStore
		expectedID    interfaces.ContentID
		expectedError bool
	}{
		{
			name: "all backends successful",
			setupMocks: func() []interfaces.BlobStore {
				mock1 := &MockBlobStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Upload", mock.Anything, name, testData).Return(testID, nil)

				mock2 := &MockBlobStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Upload", mock.Anything, name, testData).Return(testID, nil)

				return []interfaces.BlobStore{mock1, mock2}
			},
			expectedID: testID,
		},
		{
			name: "some backends fail",
			setupMocks: func() []interfaces.BlobStore {
				mock1 := &MockBlobStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Upload", mock.Anything, name, testData).Return(interfaces.ContentID(""), testErr)

				mock2 := &MockBlobStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Upload", mock.Anything, name, testData).Return(testID, nil)

				return []interfaces.BlobStore{mock1, mock2}
			},
			expectedID: testID,
		},
		{
			name: "all backends fail",
			setupMocks: func() []interfaces.BlobStore {
				mock1 := &MockBlobStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Upload", mock.Anything, name, testData).Return(interfaces.ContentID(""), testErr)

				mock2 := &MockBlobStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Upload", mock.Anything, name, testData).Return(interfaces.ContentID(""), testErr)

				return []interfaces.BlobStore{mock1, mock2}
			},
			expectedError: true,
		},
		{
			name: "unavailable backends are skipped",
			setupMocks: func() []interfaces.BlobStore {
				mock1 := &MockBlobStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)

				mock2 := &MockBlobStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Upload", mock.Anything, name, testData).Return(testID, nil)

				return []interfaces.BlobStore{mock1, mock2}
			},
			expectedID: testID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := tt.setupMocks()
			multi := NewMultiBlobStore(backends, discardLogger())

			id, err := multi.Upload(context.Background(), name, testData)
			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedID, id)
			assertMocks(t, backends)
		})
	}
}
