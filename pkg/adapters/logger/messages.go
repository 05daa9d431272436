package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Command level messages (info)
		"Probing %s":                         "%s を解析中",
		"Fetching frame at %dms from %s":     "%dms のフレームを %s から取得中",
		"Frame saved to %s":                  "フレームを %s に保存しました",
		"Prefetching %d frames from %s":      "%d フレームを %s から先読み中",
		"Filmstrip saved to %s":              "フィルムストリップを %s に保存しました",
		"Scrubbing %s from %dms to %dms":     "%s を %dms から %dms までスクラブ中",
		"Serving metrics on %s":              "%s でメトリクスを公開中",
		"Interrupted, shutting down...":      "中断されました。シャットダウン中...",
		"Cache: %d hits, %d misses, %.1f MB": "キャッシュ: ヒット %d, ミス %d, %.1f MB",

		// Cache core (debug)
		"Decoding frame at %dms from %s":            "%dms のフレームを %s からデコード中",
		"Discarding stale frame at %dms from %s":    "%dms の古いフレーム (%s) を破棄します",
		"Cache cleared, %d queued requests dropped": "キャッシュをクリアしました。待機中の要求 %d 件を破棄しました",

		// Decoders (debug)
		"Detected %s codec in %s":              "%s コーデックを %s で検出しました",
		"Using %s decoder for %s":              "%s デコーダーを %s に使用します",
		"Running ffmpeg: %s":                   "ffmpeg を実行中: %s",
		"Decoding %d samples from keyframe %d": "%d サンプルをキーフレーム %d からデコード中",

		// Warnings
		"Failed to load frame at %dms from %s: %s": "%dms のフレームを %s から読み込めませんでした: %s",
		"Failed to save debug frame: %s":           "デバッグ用フレームの保存に失敗しました: %s",
		"Timed out waiting for frames":             "フレームの待機がタイムアウトしました",

		// Errors
		"Failed to decode frame: %s": "フレームのデコードに失敗しました: %s",
		"Failed to write output: %s": "出力の書き込みに失敗しました: %s",
	})
}
