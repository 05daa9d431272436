// Package main provides localization for the framecache CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Configuration": "設定",
		"Cache":         "キャッシュ",
		"Decoder":       "デコーダー",
		"Debug":         "デバッグ",
		"Logging":       "ログ",

		// Root command
		"Inspect and scrub videos through a decoded-frame cache": "デコード済みフレームキャッシュを通して動画を調査・スクラブ",

		// Commands
		"Show codec, size, duration and frame rate of a video":      "動画のコーデック、サイズ、長さ、フレームレートを表示",
		"Fetch one frame through the cache and save it as an image": "キャッシュ経由で1フレームを取得し画像として保存",
		"Compose evenly spaced frames into a filmstrip image":       "等間隔のフレームをフィルムストリップ画像に合成",
		"Simulate playback and report cache hits and misses":        "再生をシミュレーションしキャッシュのヒットとミスを報告",
		"Show version information":                                  "バージョン情報を表示",
		"framecache version %s":                                     "framecache バージョン %s",

		// Global flags
		"YAML configuration file":                                      "YAML設定ファイル",
		"Cache budget in megabytes (default: 512)":                     "キャッシュ容量（MB、デフォルト: 512）",
		"Frames to prefetch after a missed frame (default: 30)":        "ミスしたフレームの後に先読みするフレーム数（デフォルト: 30）",
		"Frames to prefetch before a missed frame (default: 30)":       "ミスしたフレームの前に先読みするフレーム数（デフォルト: 30）",
		"Assumed frame rate used to space frames (default: 30)":        "フレーム間隔に使う想定フレームレート（デフォルト: 30）",
		"Decoder backend (auto, mp4, ffmpeg)":                          "デコーダーのバックエンド（auto, mp4, ffmpeg）",
		"Path to ffmpeg executable":                                    "ffmpeg実行ファイルのパス",
		"Downscale decoded frames to this width (0 = full resolution)": "デコードしたフレームをこの幅に縮小（0 = 元の解像度）",
		"Dump decoded frames and statistics":                           "デコードしたフレームと統計を出力",
		"Directory for debug output":                                   "デバッグ出力のディレクトリ",
		"Log level (debug, info, warn, error)":                         "ログレベル（debug, info, warn, error）",
		"Suppress all log output":                                      "全てのログ出力を抑制",

		// Command flags
		"Timestamp in milliseconds":                              "タイムスタンプ（ミリ秒）",
		"Output image path (.png or .jpg)":                       "出力画像のパス（.png または .jpg）",
		"JPEG quality (1-100)":                                   "JPEG品質（1-100）",
		"First timestamp in milliseconds":                        "最初のタイムスタンプ（ミリ秒）",
		"Last timestamp in milliseconds (default: end of video)": "最後のタイムスタンプ（ミリ秒、デフォルト: 動画の終端）",
		"Number of frames":                                       "フレーム数",
		"Thumbnail height in pixels":                             "サムネイルの高さ（ピクセル）",
		"Number of playback passes":                              "再生の回数",
		"Prefetch the whole range before playing":                "再生前に範囲全体を先読み",
		"Serve Prometheus metrics on this address (e.g., :9090)": "このアドレスでPrometheusメトリクスを公開（例: :9090）",
		"Write a Markdown summary of the run to this file":       "実行サマリーをMarkdown形式でこのファイルに出力",
		"Keep serving metrics after playback until interrupted":  "再生後も中断されるまでメトリクスを公開し続ける",

		// Info output
		"Codec":      "コーデック",
		"Size":       "サイズ",
		"Duration":   "長さ",
		"Frame rate": "フレームレート",
		"Frames":     "フレーム数",
		"Fragmented": "フラグメント化",

		// Runtime messages
		"Pass %d: %d hits, %d misses":   "パス %d: ヒット %d, ミス %d",
		"Summary saved to %s":           "サマリーを %s に保存しました",
		"Failed to write summary: %s":   "サマリーの書き込みに失敗しました: %s",
		"Failed to save statistics: %s": "統計の保存に失敗しました: %s",

		// Error messages
		"A video file argument is required": "動画ファイルの引数が必要です",
		"Duration is unknown, set --end":    "長さが不明です。--end を指定してください",
		"Empty time range":                  "時間範囲が空です",
	})
}
