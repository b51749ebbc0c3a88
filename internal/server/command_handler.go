package server

import (
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const (
	commandShowAccount     = "ledgerls.showAccountDetails"
	commandShowTransaction = "ledgerls.showTransactionDetails"
	commandShowBalance     = "ledgerls.showBalanceDetails"
	commandShowGraph       = "ledgerls.showGraph"
)

var commands = []string{commandShowAccount, commandShowTransaction, commandShowBalance, commandShowGraph}

func (s *Server) workspaceExecuteCommand(
	context *glsp.Context,
	params *protocol.ExecuteCommandParams,
) (any, error) {
	switch params.Command {
	case commandShowAccount:
		if len(params.Arguments) != 1 {
			return nil, fmt.Errorf("%s expects one account argument", params.Command)
		}
		account, ok := params.Arguments[0].(string)
		if !ok {
			return nil, fmt.Errorf("%s expects an account name, got %T", params.Command, params.Arguments[0])
		}
		context.Notify("window/showMessage", protocol.ShowMessageParams{
			Type:    protocol.MessageTypeInfo,
			Message: s.accountSummary(account),
		})
	case commandShowGraph:
		url, err := s.graph.Serve(s.config.GraphAddress)
		if err != nil {
			return nil, err
		}
		context.Notify("window/showMessage", protocol.ShowMessageParams{
			Type:    protocol.MessageTypeInfo,
			Message: "Account graph: " + url,
		})
		return url, nil
	case commandShowTransaction, commandShowBalance:
		// the lens title already carries the details
	default:
		log.Warningf("unknown command %q", params.Command)
	}
	return nil, nil
}

// accountSummary counts the postings to account across open documents.
func (s *Server) accountSummary(account string) string {
	postings, files := 0, 0
	for _, snap := range s.docs.Snapshots() {
		n := postingCounts(snap.Result())[account]
		if n > 0 {
			postings += n
			files++
		}
	}
	return fmt.Sprintf("%s: %d postings in %d open files", account, postings, files)
}
