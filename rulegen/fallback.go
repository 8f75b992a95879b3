package rulegen

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FallbackDoc is one hand-checked documentation page.
type FallbackDoc struct {
	URL   string `yaml:"url"`
	Title string `yaml:"title"`
}

// FallbackTable maps lowercase framework keys to curated documentation
// pages, used when web search fails entirely.
type FallbackTable struct {
	docs map[string][]FallbackDoc
}

// NewFallbackTable returns the built-in curated table.
func NewFallbackTable() *FallbackTable {
	return &FallbackTable{docs: defaultFallbackDocs}
}

// LoadFallbackTable reads a YAML override: a map of framework key to a list
// of {url, title} entries.
func LoadFallbackTable(path string) (*FallbackTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rulegen: read fallback table: %w", err)
	}
	docs := make(map[string][]FallbackDoc)
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("rulegen: parse fallback table %s: %w", path, err)
	}
	lowered := make(map[string][]FallbackDoc, len(docs))
	for k, v := range docs {
		lowered[strings.ToLower(k)] = v
	}
	return &FallbackTable{docs: lowered}, nil
}

// Lookup formats up to two curated pages for a framework. Keys match by
// substring in either direction, case-insensitively; when several keys
// match, the longest wins ("spring data" beats "spring"). With no match the
// generic Java pair is returned, tagged with the fallback-origin marker.
func (t *FallbackTable) Lookup(framework string) string {
	fw := strings.ToLower(strings.TrimSpace(framework))
	if fw == "" {
		fw = "java"
	}

	var best string
	for key := range t.docs {
		if !strings.Contains(fw, key) && !strings.Contains(key, fw) {
			continue
		}
		if len(key) > len(best) {
			best = key
		}
	}
	if best != "" {
		docs := t.docs[best]
		if len(docs) > 2 {
			docs = docs[:2]
		}
		lines := make([]string, 0, len(docs))
		for i, d := range docs {
			lines = append(lines, fmt.Sprintf("%d. %s - %s", i+1, d.URL, d.Title))
		}
		return strings.Join(lines, "\n")
	}

	return fmt.Sprintf("[FBO] 1. https://docs.oracle.com/javaee/7/tutorial/ - Java EE Tutorial\n"+
		"2. https://stackoverflow.com/questions/tagged/%s", strings.ReplaceAll(fw, " ", "-"))
}

// defaultFallbackDocs is the hand-checked framework documentation table.
var defaultFallbackDocs = map[string][]FallbackDoc{
	"cdi": {
		{URL: "https://jakarta.ee/specifications/cdi/4.1/jakarta-cdi-spec-4.1", Title: "Jakarta CDI Specification"},
		{URL: "https://docs.jboss.org/weld/reference/latest/en-US/html/part4.html", Title: "Weld CDI Reference"},
		{URL: "https://www.baeldung.com/java-ee-cdi", Title: "Baeldung Java EE CDI Tutorial"},
	},
	"jpa": {
		{URL: "https://jakarta.ee/specifications/persistence/3.2/jakarta-persistence-spec-3.2", Title: "Jakarta Persistence Specification"},
		{URL: "https://docs.oracle.com/javaee/7/tutorial/persistence-intro.htm", Title: "Oracle JPA Tutorial"},
		{URL: "https://www.baeldung.com/learn-jpa-hibernate", Title: "Baeldung JPA/Hibernate Guide"},
	},
	"spring boot": {
		{URL: "https://docs.spring.io/spring-boot/documentation.html", Title: "Spring Boot Documentation"},
		{URL: "https://spring.io/guides", Title: "Official Spring Guides"},
		{URL: "https://www.baeldung.com/spring-boot", Title: "Baeldung Spring Boot Tutorials"},
	},
	"spring security": {
		{URL: "https://www.geeksforgeeks.org/advance-java/spring-security-annotations/", Title: "Spring Security Annotations"},
		{URL: "https://spring.io/guides/topicals/spring-security-architecture", Title: "Spring Security Architecture"},
		{URL: "https://www.baeldung.com/spring-security-method-security", Title: "Baeldung Spring Security Tutorials"},
	},
	"spring core": {
		{URL: "https://www.javacodegeeks.com/2019/05/spring-core-annotations.html", Title: "Spring Core Annotations"},
		{URL: "https://unsekhablecom.wordpress.com/2018/11/02/15-spring-core-annotation-examples/", Title: "Spring Core Examples"},
		{URL: "https://www.baeldung.com/spring-core-annotations", Title: "Baeldung Spring Core Annotations"},
	},
	"spring cloud stream": {
		{URL: "https://docs.spring.io/spring-cloud-stream/docs/Brooklyn.SR1/reference/htmlsingle/", Title: "Spring Cloud Stream Reference"},
		{URL: "https://developer.okta.com/blog/2020/04/15/spring-cloud-stream", Title: "Spring Cloud Stream"},
		{URL: "https://www.baeldung.com/spring-cloud-stream", Title: "Baeldung Spring Cloud Stream"},
	},
	"spring data": {
		{URL: "https://www.baeldung.com/spring-data-annotations", Title: "Spring Data Annotations"},
		{URL: "https://spring.io/projects/spring-data", Title: "Spring Data Project"},
		{URL: "https://www.baeldung.com/the-persistence-layer-with-spring-data-jpa", Title: "Baeldung Spring Data JPA"},
	},
	"spring integration": {
		{URL: "https://docs.spring.io/spring-integration/docs/current/reference/html/", Title: "Spring Integration Reference"},
		{URL: "https://www.spring-doc.cn/spring-integration/6.0.9/._overview.en.html", Title: "Spring Integration Overview"},
		{URL: "https://www.baeldung.com/spring-integration", Title: "Baeldung Spring Integration"},
	},
	"spring mvc": {
		{URL: "https://docs.spring.io/spring-framework/reference/web/webmvc.html", Title: "Spring MVC Reference"},
		{URL: "https://www.geeksforgeeks.org/advance-java/spring-mvc-annotations-with-examples/", Title: "Spring MVC Annotations"},
		{URL: "https://www.baeldung.com/spring-mvc-tutorial", Title: "Baeldung Spring MVC Tutorial"},
	},
	"spring modulith": {
		{URL: "https://docs.spring.io/spring-modulith/docs/current/api/org/springframework/modulith/events/ApplicationModuleListener.html", Title: "Spring Modulith Reference"},
		{URL: "https://spring.io/projects/spring-modulith", Title: "Spring Modulith Project"},
		{URL: "https://www.baeldung.com/spring-modulith", Title: "Baeldung Spring Modulith"},
	},
	"spring aop": {
		{URL: "https://docs.spring.io/spring-framework/reference/core/aop/ataspectj.html", Title: "Spring AOP AspectJ"},
		{URL: "https://www.geeksforgeeks.org/java/spring-aop-with-examples/", Title: "Spring Guides"},
		{URL: "https://mkyong.com/spring3/spring-aop-aspectj-annotation-example/", Title: "Spring AOP Tutorial"},
	},
	"jax-rs": {
		{URL: "https://jakarta.ee/specifications/restful-ws/4.0/jakarta-restful-ws-spec-4.0", Title: "Jakarta RESTful Web Services Specification"},
		{URL: "https://docs.oracle.com/javaee/7/tutorial/jaxrs003.htm#GIPZZ", Title: "Oracle JAX-RS Tutorial"},
		{URL: "https://www.baeldung.com/rest-with-spring-series", Title: "Baeldung REST with Spring"},
	},
	"hibernate": {
		{URL: "https://hibernate.org/orm/documentation/", Title: "Hibernate ORM Documentation"},
		{URL: "https://docs.jboss.org/hibernate/orm/current/userguide/html_single/Hibernate_User_Guide.html", Title: "Hibernate User Guide"},
		{URL: "https://www.baeldung.com/learn-jpa-hibernate", Title: "Baeldung Hibernate Tutorial"},
	},
	"aop": {
		{URL: "https://eclipse.dev/aspectj/doc/released/progguide/index.html", Title: "AspectJ Programming Guide"},
		{URL: "https://docs.spring.io/spring-framework/reference/core/aop/schema.html", Title: "Spring AOP Schema"},
		{URL: "https://www.baeldung.com/aspectj", Title: "Baeldung AspectJ Tutorial"},
	},
	"javadoc": {
		{URL: "https://docs.oracle.com/javase/8/docs/technotes/tools/windows/javadoc.html", Title: "Oracle Javadoc Tool"},
		{URL: "https://www.oracle.com/technical-resources/articles/java/javadoc-tool.html", Title: "How to Write Doc Comments"},
		{URL: "https://www.baeldung.com/javadoc", Title: "Baeldung Javadoc Guide"},
	},
	"java ee": {
		{URL: "https://jakarta.ee/specifications/servlet/5.0/apidocs/", Title: "Jakarta EE Specifications"},
		{URL: "https://docs.oracle.com/javaee/7/tutorial/", Title: "Oracle Java EE 7 Tutorial"},
		{URL: "https://jakarta.ee/specifications/annotations/3.0/", Title: "Jakarta Annotations Specification"},
	},
	"validation": {
		{URL: "https://beanvalidation.org/2.0/spec/", Title: "Bean Validation 2.0 Specification"},
		{URL: "https://docs.spring.io/spring-framework/reference/core/validation/beanvalidation.html", Title: "Spring Bean Validation"},
		{URL: "https://www.baeldung.com/javax-validation", Title: "Baeldung Bean Validation Tutorial"},
	},
	"micronaut": {
		{URL: "https://docs.micronaut.io/latest/guide/", Title: "Micronaut Core Documentation"},
		{URL: "https://guides.micronaut.io/", Title: "Micronaut Guides"},
		{URL: "https://www.baeldung.com/micronaut", Title: "Baeldung Micronaut Tutorial"},
	},
	"micronaut data": {
		{URL: "https://micronaut-projects.github.io/micronaut-data/latest/guide/", Title: "Micronaut Data Documentation"},
		{URL: "https://docs.micronaut.io/4.9.5/api/io/micronaut/http/annotation/PathVariable.html", Title: "Micronaut HTTP Annotations"},
		{URL: "https://dev.to/dixitgurv/microservices-design-patterns-in-java-3pfk", Title: "Microservices Design Patterns"},
	},
	"quarkus": {
		{URL: "https://quarkus.io/guides/config-reference", Title: "Quarkus Guides"},
		{URL: "https://quarkus.io/guides/rest-client", Title: "Quarkus Documentation"},
		{URL: "https://www.baeldung.com/quarkus-io", Title: "Baeldung Quarkus Tutorial"},
	},
	"javafx": {
		{URL: "https://docs.oracle.com/javafx/2/get_started/jfxpub-get_started.htm", Title: "Oracle JavaFX Get Started"},
		{URL: "https://www.jenkov.com/tutorials/javafx/index.html", Title: "Jenkov JavaFX Tutorials"},
		{URL: "https://www.jenkov.com/tutorials/javafx/fxml.html", Title: "JavaFX FXML"},
	},
	"junit": {
		{URL: "https://junit.org/junit5/docs/current/user-guide/", Title: "JUnit 5 User Guide"},
		{URL: "https://www.baeldung.com/junit-5", Title: "Baeldung JUnit 5 Guide"},
		{URL: "https://docs.junit.org/6.0.0-RC1/user-guide/index.html", Title: "JUnit 6 User Guide"},
	},
	"java-verbose": {
		{URL: "https://www.baeldung.com/java-clean-code", Title: "Baeldung Clean Code"},
		{URL: "https://refactoring.guru/refactoring/catalog", Title: "Refactoring Catalog"},
		{URL: "https://dzone.com/articles/introduction-to-lombok", Title: "Introduction to Lombok"},
	},
	"lombok": {
		{URL: "https://projectlombok.org/features/", Title: "Project Lombok Features"},
		{URL: "https://www.baeldung.com/intro-to-project-lombok", Title: "Baeldung Lombok Introduction"},
	},
	"serialization": {
		{URL: "https://stackoverflow.com/questions/63783474/what-is-the-use-of-serial-annotation-as-of-java-14", Title: "The @Serial Annotation in Java 14"},
		{URL: "https://www.baeldung.com/java-14-serial-annotation", Title: "Baeldung Java 14 Serial Annotation"},
		{URL: "https://dzone.com/articles/javas-serial-annotation", Title: "Java Serial Annotation"},
	},
	"testng": {
		{URL: "https://testng.org/", Title: "TestNG Documentation"},
		{URL: "https://www.baeldung.com/testng", Title: "Baeldung TestNG Tutorial"},
		{URL: "https://www.tutorialspoint.com/testng/testng_quick_guide.htm", Title: "TestNG Quick Guide"},
	},
}
