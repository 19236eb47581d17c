package minio

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/xas-miner/internal/domain/taxonomy"
	"github.com/turtacn/xas-miner/pkg/errors"
)

type TreeRepositoryTestSuite struct {
	suite.Suite
	api  *MockObjectAPI
	repo *TreeRepository
}

func (s *TreeRepositoryTestSuite) SetupTest() {
	s.api = new(MockObjectAPI)
	s.repo = NewTreeRepository(newTestClient(s.api), nil)
}

func (s *TreeRepositoryTestSuite) TearDownTest() {
	s.api.AssertExpectations(s.T())
}

func sampleTree() []taxonomy.Node {
	return []taxonomy.Node{
		{ID: "xas", Parent: "#", Text: "XAS (1)", Count: 1},
		{
			ID:     "10.1000/a_0",
			Parent: "xanes_Ni_K",
			Text:   "[2019] Nickel",
			AAttr:  &taxonomy.Link{Href: "http://doi.org/10.1000/a"},
			Type:   taxonomy.LeafType,
			Data:   []taxonomy.Evidence{{FigLabel: "Figure 2", FigCaption: []string{"Ni K-edge."}, FigFile: "f2.png"}},
		},
	}
}

func (s *TreeRepositoryTestSuite) TestSave() {
	nodes := sampleTree()
	body, err := taxonomy.Encode(nodes)
	s.Require().NoError(err)

	s.api.On("PutObject", mock.Anything, "xas", defaultObjectKey, body, int64(len(body)),
		minio.PutObjectOptions{
			ContentType:  contentTypeJSON,
			UserMetadata: map[string]string{metaNodeCount: "2"},
		}).Return(minio.UploadInfo{Bucket: "xas", Key: defaultObjectKey, ETag: "abc"}, nil)

	s.NoError(s.repo.Save(context.Background(), nodes))
}

func (s *TreeRepositoryTestSuite) TestSave_UploadFails() {
	s.api.On("PutObject", mock.Anything, "xas", defaultObjectKey, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, stderrors.New("503 slow down"))

	err := s.repo.Save(context.Background(), sampleTree())
	s.True(errors.IsCode(err, errors.ErrCodeTreePersistFailed))
}

func (s *TreeRepositoryTestSuite) TestLoad_RoundTrip() {
	body, _ := taxonomy.Encode(sampleTree())
	s.api.On("ReadObject", mock.Anything, "xas", defaultObjectKey).Return(body, nil)

	nodes, err := s.repo.Load(context.Background())
	s.Require().NoError(err)
	s.Equal(sampleTree(), nodes)
}

func (s *TreeRepositoryTestSuite) TestLoad_MissingObjectIsNotFound() {
	s.api.On("ReadObject", mock.Anything, "xas", defaultObjectKey).
		Return(nil, minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."})

	_, err := s.repo.Load(context.Background())
	s.True(errors.IsNotFound(err))
}

func (s *TreeRepositoryTestSuite) TestLoad_OtherFailure() {
	s.api.On("ReadObject", mock.Anything, "xas", defaultObjectKey).
		Return(nil, minio.ErrorResponse{Code: "AccessDenied"})

	_, err := s.repo.Load(context.Background())
	s.False(errors.IsNotFound(err))
	s.True(errors.IsCode(err, errors.ErrCodeExternalService))
}

func (s *TreeRepositoryTestSuite) TestLoad_CorruptObject() {
	s.api.On("ReadObject", mock.Anything, "xas", defaultObjectKey).Return([]byte("{"), nil)

	_, err := s.repo.Load(context.Background())
	s.True(errors.IsCode(err, errors.ErrCodeSerialization))
}

func TestTreeRepositorySuite(t *testing.T) {
	suite.Run(t, new(TreeRepositoryTestSuite))
}
