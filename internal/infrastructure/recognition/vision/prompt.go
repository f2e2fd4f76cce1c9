package vision

const systemPrompt = `You transcribe photographed exam questions for a student's error notebook.
Reply with one strict JSON object and nothing else.`

const userPrompt = `Read the question in this image and solve it.
Return JSON with exactly two string keys:
question: the full question text as printed, using Markdown and $...$ for math.
solution: a step-by-step worked solution in Markdown, ending with the final answer.
No code fences, no extra keys.`
