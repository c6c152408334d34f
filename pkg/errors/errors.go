// Package errors はpricecast全体のエラーハンドリングと警告システムを提供します。
// パイプラインの各段階で発生する致命的エラーを型として区別し、
// 再実行せずに原因を特定できるだけの文脈（段階名、列名、形状）を保持します。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("pricecast-Warning: %v\n", w)
	}
	zerologWarnFunc func(warning error)
)

// SetWarningHandler は警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// ConvergenceWarning は最適化アルゴリズムが収束しなかった場合に発生する警告です。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or adjusting parameters.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning は新しいConvergenceWarningを作成します。
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// EmptyVocabularyWarning はテキストエンコーダの語彙が空になった場合の警告です。
// 該当ブロックは0列として扱われ、パイプラインは継続します。
type EmptyVocabularyWarning struct {
	Encoder string
	Column  string
	MinDF   int
	Docs    int
}

func (w *EmptyVocabularyWarning) Error() string {
	return fmt.Sprintf("%s on column '%s' produced an empty vocabulary (min_df=%d, documents=%d); the block will have zero columns",
		w.Encoder, w.Column, w.MinDF, w.Docs)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *EmptyVocabularyWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("encoder", w.Encoder).
		Str("column", w.Column).
		Int("min_df", w.MinDF).
		Int("documents", w.Docs).
		Str("type", "EmptyVocabularyWarning")
}

// ===========================================================================
//
//	パイプラインの致命的エラー
//
// ===========================================================================

// SchemaError は入力テーブルに期待する列が存在しない、または値が不正な場合のエラーです。
// 下流の全段階が列の存在を前提とするため、常に致命的です。
type SchemaError struct {
	Source string // 入力元（ファイルパスやテーブル名）
	Column string
	Row    int // -1 はヘッダ/列レベルの問題
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("pricecast: schema error in %s, column '%s', row %d: %s", e.Source, e.Column, e.Row, e.Reason)
	}
	return fmt.Sprintf("pricecast: schema error in %s, column '%s': %s", e.Source, e.Column, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *SchemaError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("source", e.Source).
		Str("column", e.Column).
		Int("row", e.Row).
		Str("reason", e.Reason).
		Str("type", "SchemaError")
}

// NewSchemaError は列レベルのSchemaErrorを作成し、スタックトレースを付与します。
func NewSchemaError(source, column, reason string) error {
	return errors.WithStack(&SchemaError{Source: source, Column: column, Row: -1, Reason: reason})
}

// NewSchemaRowError は行を特定したSchemaErrorを作成します。
func NewSchemaRowError(source, column string, row int, reason string) error {
	return errors.WithStack(&SchemaError{Source: source, Column: column, Row: row, Reason: reason})
}

// EncodingError はベクトル化・トークナイズ段階での失敗を表します。
// 行を読み飛ばすと識別子リストとの行対応が崩れるため、行単位の回復は行いません。
type EncodingError struct {
	Stage  string
	Column string
	Row    int
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("pricecast: encoding failed in %s for column '%s' at row %d: %v", e.Stage, e.Column, e.Row, e.Err)
	}
	return fmt.Sprintf("pricecast: encoding failed in %s for column '%s': %v", e.Stage, e.Column, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *EncodingError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("stage", e.Stage).
		Str("column", e.Column).
		Int("row", e.Row).
		AnErr("cause", e.Err).
		Str("type", "EncodingError")
}

// NewEncodingError は新しいEncodingErrorを作成します。row が不明な場合は -1 を渡します。
func NewEncodingError(stage, column string, row int, err error) error {
	return errors.WithStack(&EncodingError{Stage: stage, Column: column, Row: row, Err: err})
}

// ShapeMismatchError は特徴ブロックの行数が統合テーブルの行数と一致しない場合のエラーです。
type ShapeMismatchError struct {
	Block    string
	Expected int
	Got      int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("pricecast: feature block '%s' has %d rows, expected %d", e.Block, e.Got, e.Expected)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ShapeMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("block", e.Block).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Str("type", "ShapeMismatchError")
}

// NewShapeMismatchError は新しいShapeMismatchErrorを作成します。
func NewShapeMismatchError(block string, expected, got int) error {
	return errors.WithStack(&ShapeMismatchError{Block: block, Expected: expected, Got: got})
}

// ModelFitError はアンサンブルのいずれかのモデルの学習・予測が失敗した場合のエラーです。
// ブレンド重みは全モデルの寄与を前提とするため、部分的なアンサンブルは作りません。
type ModelFitError struct {
	Model string
	Phase string // "fit" または "predict"
	Err   error
}

func (e *ModelFitError) Error() string {
	return fmt.Sprintf("pricecast: model '%s' failed during %s: %v", e.Model, e.Phase, e.Err)
}

func (e *ModelFitError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ModelFitError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model", e.Model).
		Str("phase", e.Phase).
		AnErr("cause", e.Err).
		Str("type", "ModelFitError")
}

// NewModelFitError は新しいModelFitErrorを作成します。
func NewModelFitError(modelName, phase string, err error) error {
	return errors.WithStack(&ModelFitError{Model: modelName, Phase: phase, Err: err})
}

// ===========================================================================
//
//	推定器のエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` や `Transform` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("pricecast: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("pricecast: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pricecast: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("pricecast: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError は推定器内部の一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pricecast: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("pricecast: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrNonFinite は NaN または Inf を検出した場合のエラーです。
	ErrNonFinite = New("non-finite value")
)
