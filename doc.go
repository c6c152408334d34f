// Package pricecast predicts second-hand listing prices from their
// title, brand, category, condition, shipping flag and free-text
// description.
//
// The repository is organised as a small library plus one command.
// Two flows share the same loader and normalisation:
//
//   - ensemble: builds a sparse design matrix (dummies, TF-IDF
//     description, binarised brand, counted category and name), fits
//     three ridge regressions and two gradient boosted tree models on
//     log1p(price), and blends them with fixed convex weights into a
//     test_id,price submission.
//   - preprocess: builds a dense matrix of dummies plus the averaged
//     word embedding of the composed listing text and writes it in
//     Matrix Market format for an external model.
//
// # Quick Start
//
//	cfg, err := config.Load("pricecast.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	manifest, err := pipeline.NewRunner(cfg).RunEnsemble(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("run", manifest.RunID, "features", manifest.Features)
//
// # Packages
//
//   - dataset: TSV and SQLite sources, schema checks, the unified frame
//   - preprocessing: missing-value normalisation, cardinality reduction,
//     label and dummy encoders
//   - sklearn/feature_extraction/text: count and TF-IDF vectorizers
//   - sklearn/feature_extraction/embedding: lemma annotation and
//     averaged word vectors
//   - features: encoder selection, the two feature plans, matrix assembly
//   - sklearn/linear_model: ridge regression (sag, lsqr, auto)
//   - sklearn/lightgbm: histogram gradient boosting on sparse input
//   - ensemble: member fitting and weighted blending
//   - pipeline: end-to-end flows, artifacts and run metrics
//   - config: koanf-based configuration with validation
//   - core/sparse: CSR matrices, stacking and Matrix Market I/O
//   - pkg/errors, pkg/log: error types and structured logging
//
// # Configuration
//
// Defaults are layered with an optional YAML file and PRICECAST_*
// environment variables; "__" separates nesting levels, e.g.
// PRICECAST_OUTPUT__SUBMISSION=out.csv.
package pricecast
