package prompts

// ProfileHeader opens the injected profile memory block.
const ProfileHeader = "User profile memory (facts/preferences):"

// ProfileRubric follows the profile facts and tells the model how to use them.
const ProfileRubric = "When responding, respect the user's stored preferences (tone, summary_style, prefers_sources, etc.). " +
	"If prefers_sources is True, place sources at the very end."

// WorkerToolUsePrompt is appended to every worker prompt that has tools.
const WorkerToolUsePrompt = `<tool_use>
- Call a tool only when it moves the task forward; answer directly otherwise.
- Tool results may start with "Error:". Read the message and either retry with corrected arguments or explain the problem.
- When the user states a lasting preference or fact about themselves, store it with remember.
- Your final message is handed back to the supervisor verbatim. Make it a complete answer.
</tool_use>`

// DocumentAnswerTemplate is filled with the question and the retrieved context.
const DocumentAnswerTemplate = `You are a precise assistant. Using ONLY the context below, answer clearly and concisely.
If the answer isn't in the context, say "I don't have enough information in the documents."
Respect the user's stored tone, summary_style, and prefers_sources.

Question:
%s

Context:
%s

Answer:`

// SQLDraftTemplate asks for a single read-only query for the given schema.
const SQLDraftTemplate = `You are a SQLite expert. Given an input question, create a syntactically correct SQLite query to run.
Unless the user specifies a number of rows, query for at most %d results using the LIMIT clause.
Never query for all columns from a table; select only the columns needed to answer the question.
Only use tables and columns listed below. The query must be read-only: a single SELECT or WITH statement ending in a semicolon.

Schema:
%s

Question: %s
SQLQuery:`
