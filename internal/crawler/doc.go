// Package crawler implements the concurrent crawl engine: URL admission,
// the visited set, the frontier queue with quiescence detection, the worker
// pool and the coordinator exposed as Engine.Crawl.
//
// Rendering, extraction and link enumeration are supplied through the
// Renderer, Extractor and LinkEnumerator interfaces so the engine can run
// against a headless browser, a static HTTP collector or test fakes.
package crawler
