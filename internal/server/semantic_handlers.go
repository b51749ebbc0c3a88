package server

import (
	"ledgerls/internal/semantic"

	"github.com/google/uuid"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (s *Server) textDocumentSemanticTokensFull(
	context *glsp.Context,
	params *protocol.SemanticTokensParams,
) (*protocol.SemanticTokens, error) {
	snap, err := s.docs.Get(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	return s.semanticTokens(semantic.Collect(snap)), nil
}

func (s *Server) textDocumentSemanticTokensRange(
	context *glsp.Context,
	params *protocol.SemanticTokensRangeParams,
) (any, error) {
	snap, err := s.docs.Get(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	return s.semanticTokens(semantic.InRange(semantic.Collect(snap), params.Range)), nil
}

func (s *Server) semanticTokens(tokens []semantic.RawToken) *protocol.SemanticTokens {
	s.metrics.ObserveTokens(len(tokens))
	resultID := uuid.NewString()
	return &protocol.SemanticTokens{
		ResultID: &resultID,
		Data:     semantic.Encode(tokens),
	}
}
