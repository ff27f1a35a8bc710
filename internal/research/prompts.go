// Package research holds the prompt templates behind the research tools.
// Each template frames a topic for a specific kind of programming question
// so the upstream answers with structure, code and citations.
package research

import (
	"fmt"
	"strings"
)

const defaultCategory = "general"

var templates = map[string]string{
	"api": `Research "{topic}" API/SDK documentation and usage.

Provide a comprehensive guide including:
1. **Quick Start**: Minimal working code example with all necessary imports
2. **Authentication & Setup**: How to configure, initialize, and authenticate
3. **Key Endpoints/Methods**: Most common operations with complete code examples
4. **Request/Response Examples**: Show actual payloads and data structures
5. **Error Handling**: Common errors, status codes, and how to handle them gracefully
6. **Rate Limits & Best Practices**: Usage constraints and optimization tips
7. **Version Info**: Current stable version, breaking changes, and compatibility notes

Include complete, runnable code examples with proper imports and error handling.`,

	"library": `Research "{topic}" library/framework for software development.

Provide a comprehensive guide including:
1. **Installation & Setup**: Package manager commands, dependencies, and configuration
2. **Core Concepts**: Key abstractions, data structures, and design patterns used
3. **Quick Start Example**: Minimal working code demonstrating basic usage
4. **Common Use Cases**: Typical scenarios with complete code examples
5. **Configuration Options**: Important settings, defaults, and customization
6. **Integration Patterns**: How to integrate with other common tools/frameworks
7. **Performance Tips**: Optimization techniques and common pitfalls to avoid
8. **Version Compatibility**: Supported versions, migration guides, and deprecations

Include TypeScript/type definitions where applicable. All code examples should be complete and runnable.`,

	"implementation": `Research how to implement "{topic}" in software development.

Provide step-by-step implementation guidance:
1. **Architecture Overview**: High-level design and component interactions
2. **Prerequisites**: Required knowledge, dependencies, and setup
3. **Step-by-Step Implementation**:
   - Data models and type definitions
   - Core logic implementation with code
   - Error handling and edge cases
   - Testing approach
4. **Complete Code Example**: Full working implementation with comments
5. **Common Pitfalls**: Mistakes to avoid and debugging tips
6. **Security Considerations**: Relevant security best practices
7. **Production Readiness**: Logging, monitoring, and deployment considerations

Provide complete, production-quality code examples with proper error handling and types.`,

	"debugging": `Research debugging approaches for "{topic}" issues in software development.

Provide systematic debugging guidance:
1. **Common Causes**: Most frequent reasons for this issue
2. **Diagnostic Steps**: How to identify the root cause
   - Logging and tracing approaches
   - Debugging tools and techniques
   - Key indicators to look for
3. **Solution Patterns**: Fixes for each common cause with code examples
4. **Prevention Strategies**: How to avoid this issue in the future
5. **Related Issues**: Similar problems that may have the same symptoms
6. **Tool Recommendations**: Debuggers, profilers, and monitoring tools

Include code snippets showing both problematic patterns and their fixes.`,

	"comparison": `Research and compare options for "{topic}" in software development.

Provide an objective technical comparison:
1. **Options Overview**: Brief description of each alternative
2. **Feature Comparison Table**: Key capabilities side-by-side
3. **Performance Benchmarks**: Speed, memory, scalability metrics (with sources)
4. **Code Comparison**: Same task implemented in each option
5. **Pros and Cons**: Strengths and weaknesses of each
6. **Use Case Recommendations**: When to choose each option
7. **Community & Ecosystem**: Popularity, maintenance status, documentation quality
8. **Migration Considerations**: Switching costs between options

Include specific version numbers and benchmark data with citations.`,

	"general": `Research "{topic}" for software development purposes.

Provide a comprehensive programming-focused overview:
1. **Concept Overview**: What it is and why it matters for developers
2. **How It Works**: Technical explanation with diagrams/pseudocode if helpful
3. **Code Examples**: Practical implementations in relevant languages
4. **Common Patterns**: Typical usage patterns and idioms
5. **Best Practices**: Industry-standard approaches and recommendations
6. **Gotchas & Pitfalls**: Common mistakes and how to avoid them
7. **Tools & Libraries**: Relevant ecosystem tools
8. **Further Learning**: Documentation, tutorials, and resources

Include working code examples with proper imports and error handling.`,
}

// Categories lists the recognised research categories.
func Categories() []string {
	out := make([]string, 0, len(templates))
	for name := range templates {
		out = append(out, name)
	}
	return out
}

// Prompt renders the research prompt for a topic. An unrecognised category
// falls back to the general template.
func Prompt(topic, category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	tmpl, ok := templates[category]
	if !ok {
		tmpl = templates[defaultCategory]
	}
	return strings.ReplaceAll(tmpl, "{topic}", topic)
}

// GeneralPrompt frames a non-programming topic for broad academic-style
// research, using the category as free-text context rather than a template
// selector.
func GeneralPrompt(topic, category string) string {
	if strings.TrimSpace(category) == "" {
		category = defaultCategory
	}
	return fmt.Sprintf(`Research %q in the context of %s.

Provide a comprehensive overview including:
1. **Definition and core concepts**
2. **Key principles and how it works**
3. **Practical examples and use cases**
4. **Important considerations and best practices**
5. **Related topics and further reading**

Use credible sources and cite where possible.`, topic, category)
}
