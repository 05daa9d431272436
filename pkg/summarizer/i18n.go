package summarizer

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Headings
		"Scrub Summary": "スクラブサマリー",
		"Generated":     "生成日時",
		"Video":         "動画",
		"Settings":      "設定",
		"Passes":        "パス",
		"Results":       "実行結果",
		"Item":          "項目",
		"Value":         "値",
		"Generated by":  "生成:",

		// Video section
		"File":       "ファイル",
		"Codec":      "コーデック",
		"Decoder":    "デコーダー",
		"Size":       "サイズ",
		"Duration":   "長さ",
		"Frame Rate": "フレームレート",
		"Frames":     "フレーム数",

		// Settings section
		"Cache Size":         "キャッシュ容量",
		"Frames Ahead":       "先読みフレーム数",
		"Frames Behind":      "後方フレーム数",
		"Assumed Frame Rate": "想定フレームレート",
		"Decoder Mode":       "デコーダーモード",
		"Preview Width":      "プレビュー幅",
		"Full resolution":    "元の解像度",
		"Range":              "範囲",
		"None":               "なし",

		// Results section
		"Pass":          "パス",
		"Hits":          "ヒット",
		"Misses":        "ミス",
		"Hit Ratio":     "ヒット率",
		"Frames Loaded": "読み込んだフレーム",
		"Load Errors":   "読み込みエラー",
		"Evictions":     "追い出し",
		"Cached Frames": "キャッシュ済みフレーム",
		"Cache Usage":   "キャッシュ使用量",
		"Elapsed":       "経過時間",
	})
}
