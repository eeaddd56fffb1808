package graph

// Prompt templates for the knowledge-graph model calls. The surrounding
// application is Japanese-facing, so the prompts and the fixed fallback
// messages are Japanese; the structured shape of each response is enforced
// separately through a JSON schema.

const extractPrompt = `%s重要なエンティティと関係を抽出してください。
特に%sに注目してください。

タイトル: %s
内容: %s

抽出ルール：
- エンティティの type は %s から選択
- 関係の type は %s から選択
- エンティティ名は具体的で重複しないように
- 関係は方向性を明確に
- 重要度の高いもの（上位5-10個）のみ抽出
- confidence と strength は 0.0〜1.0 の数値
`

const analyzeQueryPrompt = `以下のユーザーメッセージを分析して、検索意図を特定してください：

ユーザーメッセージ: %s

判定ルール：
- query_type は HOW_TO|ANALYSIS|COMPARISON|TROUBLESHOOTING|GENERAL から選択
- keywords は重要キーワードを3個程度
- focus は PROCEDURE|REPORT|BOTH から選択
- entity_types は TOOL, STEP, RESULT, ISSUE などの関連タイプ
- search_intent は何を探しているかの説明
- priority は HIGH|MEDIUM|LOW から選択
`

const generateAnswerPrompt = `以下のナレッジベースから、ユーザーの質問に対して具体的で実用的な回答を提供してください：

%s

質問: %s
質問の意図: %s

回答の要件：
1. 分析結果と手順を適切に組み合わせて回答
2. 具体的で実行可能なアドバイスを含める
3. 関係性の情報も活用して包括的に回答
4. 参考にした情報源を明記 (例: 【タイトル】)
5. 日本語で自然な文章で回答

回答:
`

// Fixed user-visible fallback messages.
const (
	noInfoMessage      = "申し訳ございませんが、ご質問に関連する情報が見つかりませんでした。"
	emptyAnswerMessage = "回答を生成できませんでした。もう一度お試しください。"
	answerErrorMessage = "回答生成中にエラーが発生しました。申し訳ございませんが、管理者にお問い合わせください。"
)

// extractionConfig selects the prompt framing and the type vocabularies for
// one document type. The vocabularies guide the model; they are not enforced
// as closed enums.
type extractionConfig struct {
	context       string
	focus         string
	entityTypes   string
	relationTypes string
}

func extractionConfigFor(docType string) extractionConfig {
	if docType == "report" {
		return extractionConfig{
			context:       "このレポートから",
			focus:         "分析結果、データ、結論、要因、指標、問題点",
			entityTypes:   "METRIC|FACTOR|RESULT|ISSUE|TREND|INSIGHT|TOOL|PERSON|ORGANIZATION",
			relationTypes: "CAUSES|CORRELATES_WITH|INDICATES|SHOWS|MENTIONS|USES|AFFECTS",
		}
	}
	return extractionConfig{
		context:       "この手順から",
		focus:         "ステップ、ツール、条件、成果物、前提条件、手順",
		entityTypes:   "STEP|TOOL|CONDITION|OUTPUT|INPUT|REQUIREMENT|RESOURCE|ACTION",
		relationTypes: "REQUIRES|PRODUCES|USES|LEADS_TO|DEPENDS_ON|MENTIONS|ENABLES",
	}
}
