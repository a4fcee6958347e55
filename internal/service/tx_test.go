package service

import "context"

type testTxRepos struct {
	documents DocumentStore
	fragments FragmentStore
}

func (t *testTxRepos) Documents() DocumentStore {
	return t.documents
}

func (t *testTxRepos) Fragments() FragmentStore {
	return t.fragments
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
	err    error
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	if t.err != nil {
		return t.err
	}
	return fn(t.repos)
}
