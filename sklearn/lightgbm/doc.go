// Package lightgbm は疎行列 (sparse.CSR) 上で学習するヒストグラム型の
// 勾配ブースティング決定木 (GBDT) 回帰を提供する。
//
// LightGBM と同じく特徴量を max_bin 個以下のビンに離散化し、葉単位
// (leaf-wise) で木を成長させる。疎な入力のゼロは暗黙のビンとして扱い、
// 非ゼロ要素だけを走査してヒストグラムを作る。
//
// 使用例:
//
//	reg := lightgbm.NewLGBMRegressor().
//		WithLearningRate(0.715).
//		WithMaxDepth(3).
//		WithNumLeaves(110).
//		WithNumIterations(7500).
//		WithEarlyStopping(500)
//	err := reg.Fit(X, y)
//	pred, err := reg.Predict(XTest)
package lightgbm
