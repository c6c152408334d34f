package model

import (
	"context"

	"github.com/YuminosukeSato/pricecast/core/sparse"
)

// TextEncoder はテキスト列を疎行列に変換するエンコーダの共通契約
// Count/TF-IDF とエンベディング平均の両戦略がこれを実装する
// Fit は統合テーブルの列に対して一度だけ呼ばれ、同じ列を Transform する
type TextEncoder interface {
	// Fit は語彙などの状態を学習する
	Fit(ctx context.Context, docs []string) error

	// Transform は文書ごとに1行の疎行列を返す。行順は入力順
	Transform(ctx context.Context, docs []string) (*sparse.CSR, error)

	// NumFeatures は Transform が返す列数
	NumFeatures() int
}

// FitTransform は Fit と Transform を続けて実行する
func FitTransform(ctx context.Context, enc TextEncoder, docs []string) (*sparse.CSR, error) {
	if err := enc.Fit(ctx, docs); err != nil {
		return nil, err
	}
	return enc.Transform(ctx, docs)
}
